package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sections/core"
)

func TestParseHeader(t *testing.T) {
	columns := []string{"Email", "Name"}
	tests := []struct {
		name    string
		row     []string
		want    Header
		wantMsg string
	}{
		{name: "exact", row: []string{"Email", "Name"}, want: Header{"Email": 0, "Name": 1}},
		{name: "reordered and padded", row: []string{" Name ", "Email"}, want: Header{"Email": 1, "Name": 0}},
		{name: "unknown", row: []string{"Email", "Name", "Age"}, wantMsg: "Unable to process column header 'Age'"},
		{name: "duplicate", row: []string{"Email", "Email", "Name"}, wantMsg: "Duplicate attribute: Email"},
		{name: "missing", row: []string{"Email"}, wantMsg: "Unable to find column corresponding to attribute 'Name'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHeader(tt.row, columns)
			if tt.wantMsg != "" {
				assert.True(t, core.IsFailure(err, core.FailureImport))
				assert.EqualError(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}

	h := Header{"Email": 0, "Name": 3}
	assert.Equal(t, "a@x.edu", h.Get([]string{" a@x.edu "}, "Email"))
	assert.Equal(t, "", h.Get([]string{"a@x.edu"}, "Name"), "short rows read as blank")
	assert.Equal(t, "", h.Get([]string{"a@x.edu"}, "Type"))
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: "true", want: true},
		{in: " TRUE ", want: true},
		{in: "False"},
		{in: "yes", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBool(tt.in)
			if tt.wantErr {
				assert.EqualError(t, err, "Unknown boolean value: "+tt.in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTime(t *testing.T) {
	pst := time.FixedZone("PST", -8*3600)
	weekStart := time.Date(2021, 8, 23, 0, 0, 0, 0, pst)

	tests := []struct {
		day, clock string
		want       time.Time
		wantMsg    string
	}{
		{day: "M", clock: "8:00a", want: time.Date(2021, 8, 23, 8, 0, 0, 0, pst)},
		{day: "Th", clock: "03:30 PM", want: time.Date(2021, 8, 26, 15, 30, 0, 0, pst)},
		{day: "Su", clock: "12:00a", want: time.Date(2021, 8, 29, 0, 0, 0, 0, pst)},
		{day: "W", clock: "12:15pm", want: time.Date(2021, 8, 25, 12, 15, 0, 0, pst)},
		{day: "Tu", clock: "8:00a", wantMsg: "Unknown day: Tu"},
		{day: "M", clock: "8:00", wantMsg: "Unknown time: 8:00"},
		{day: "M", clock: "13:00p", wantMsg: "Unknown time: 13:00p"},
		{day: "M", clock: "9:75a", wantMsg: "Unknown time: 9:75a"},
	}
	for _, tt := range tests {
		t.Run(tt.day+" "+tt.clock, func(t *testing.T) {
			got, err := ParseTime(weekStart, tt.day, tt.clock)
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}
