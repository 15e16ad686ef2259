// Package sheets provides the spreadsheet row sources the importer reads from.
package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/importer"
)

var spreadsheetIDRegex = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// CSVFile holds a single sheet; the sheet name is ignored.
type CSVFile struct {
	Path string
}

var _ importer.Source = CSVFile{}

func (src CSVFile) Rows(_ context.Context, _ string) ([][]string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	return rows, errors.Wrap(err, "reading csv")
}

type XLSXFile struct {
	Path string
}

var _ importer.Source = XLSXFile{}

func (src XLSXFile) Rows(_ context.Context, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	return rows, errors.Wrapf(err, "reading sheet %q", sheet)
}

// GoogleSheet reads the tabs of one Google spreadsheet.
type GoogleSheet struct {
	svc *sheets.Service
	id  string
}

var _ importer.Source = (*GoogleSheet)(nil)

// NewGoogleSheet connects to the spreadsheet at url with a service account credentials file.
func NewGoogleSheet(ctx context.Context, credentialsFile, url string) (*GoogleSheet, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheets client")
	}
	return &GoogleSheet{svc: svc, id: id}, nil
}

func (src *GoogleSheet) Rows(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := src.svc.Spreadsheets.Values.Get(src.id, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheet)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, 0, len(values))
		for _, cell := range values {
			if s, ok := cell.(string); ok {
				row = append(row, s)
			} else {
				row = append(row, fmt.Sprintf("%v", cell))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SpreadsheetID extracts the document id of a Google Sheets url.
func SpreadsheetID(url string) (string, error) {
	m := spreadsheetIDRegex.FindStringSubmatch(url)
	if m == nil {
		return "", core.NewFailure(core.FailureImport, "Invalid spreadsheet URL: %s", url)
	}
	return m[1], nil
}

// Open picks a source for location: a Google Sheets url, or a .csv / .xlsx file path.
func Open(ctx context.Context, conf *core.Config, location string) (importer.Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewGoogleSheet(ctx, conf.Google.CredentialsFile, location)
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv":
		return CSVFile{Path: location}, nil
	case ".xlsx":
		return XLSXFile{Path: location}, nil
	}
	return nil, errors.Errorf("unsupported spreadsheet %q: expected a Google Sheets url, a .csv or an .xlsx file", location)
}
