package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/sections/apps/api/echo"
	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/report"
	emailsvc "github.com/trezcool/sections/services/email"
	"github.com/trezcool/sections/services/identity"
	"github.com/trezcool/sections/storage/database/inmem"
	testutil "github.com/trezcool/sections/tests"
)

const (
	staffEmail = "tutor@test.edu"
	adminEmail = "head@test.edu"
)

type testApp struct {
	*Server
	store  *inmem.DB
	issuer *identity.TokenIssuer
	sheets map[string]importer.Source
}

// staticSource serves fixed rows for every sheet.
type staticSource [][]string

func (src staticSource) Rows(context.Context, string) ([][]string, error) {
	return src, nil
}

func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig()
	conf.StaffEmails = []string{staffEmail}
	conf.AdminEmails = []string{adminEmail}

	store := testutil.NewStore()
	logger := new(testutil.Logger)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	app := &testApp{
		store:  store,
		issuer: identity.NewTokenIssuer(conf),
		sheets: make(map[string]importer.Source),
	}
	app.Server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Store:      store,
		Enrollment: enrollment.NewService(store, logger),
		Attendance: attendance.NewService(store),
		Reports:    report.NewService(store, conf.Term),
		Importer:   importer.NewService(store, logger, conf.Term.ImportWeekStart),
		MailSvc:    emailsvc.NewConsoleService(conf, io.Discard),
		Issuer:     app.issuer,
		Directory:  identity.NewDirectory(conf),
		Validate:   validate,
		Translator: translator,
		OpenSheet: func(_ context.Context, url string) (importer.Source, error) {
			if src, ok := app.sheets[url]; ok {
				return src, nil
			}
			return nil, core.NewFailure(core.FailureImport, "Unknown sheet %s", url)
		},
	})
	return app
}

func (app *testApp) token(t *testing.T, email string) string {
	token, err := app.issuer.GenerateToken(app.issuer.Claims(email, "", testutil.Course))
	require.NoError(t, err)
	return token
}

type response struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// call posts body to /api/<op> as the owner of token (anonymous when empty).
func (app *testApp) call(t *testing.T, op, token string, body interface{}) (int, response) {
	rec := app.post(t, op, token, body)
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func (app *testApp) post(t *testing.T, op, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/"+op, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, data json.RawMessage, v interface{}) {
	require.NoError(t, json.Unmarshal(data, v), string(data))
}
