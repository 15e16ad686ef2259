package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailListValidation(t *testing.T) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	InitValidators(validate, translator)

	type request struct {
		Emails string `json:"emails" validate:"required,emails"`
	}
	tests := []struct {
		emails string
		wantOk bool
	}{
		{emails: "a@x.edu", wantOk: true},
		{emails: "a@x.edu, B@x.edu\nc@x.edu", wantOk: true},
		{emails: " , ", wantOk: false},
		{emails: "a@x.edu, not-an-email", wantOk: false},
		{emails: "Alice <a@x.edu>", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.emails, func(t *testing.T) {
			err := validate.Struct(request{Emails: tt.emails})
			if tt.wantOk {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			assert.Equal(t, "emails", vErrs[0].Field())
			assert.Equal(t, "enter email addresses separated by commas or spaces", vErrs[0].Translate(translator))
		})
	}

	err := validate.Struct(request{})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Equal(t, "this field is required", vErrs[0].Translate(translator))
}
