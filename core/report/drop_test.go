package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/roster"
)

func TestShouldDrop(t *testing.T) {
	weekStart := time.Date(2022, 6, 27, 0, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return weekStart.Add(time.Duration(n)*24*time.Hour + 10*time.Hour) }
	rec := func(n int, st roster.AttendanceStatus) Record { return Record{SessionStart: day(n), Status: st} }

	summer := core.TermConfig{FirstWeekStart: weekStart, IsSummer: true, MaxAbsences: 2}
	regular := core.TermConfig{FirstWeekStart: weekStart, MaxAbsences: 2}

	tests := []struct {
		name    string
		term    core.TermConfig
		records []Record
		want    bool
	}{
		{name: "no records", term: regular, want: false},
		{name: "only later weeks", term: regular, records: []Record{rec(8, roster.Present)}, want: false},
		{name: "too many absences", term: regular, records: []Record{
			rec(0, roster.Present), rec(8, roster.Absent), rec(15, roster.Absent), rec(22, roster.Absent),
		}, want: true},
		{name: "absences at the limit", term: regular, records: []Record{
			rec(0, roster.Present), rec(8, roster.Absent), rec(15, roster.Absent),
		}, want: false},
		{name: "regular first session missed", term: regular, records: []Record{
			rec(2, roster.Present), rec(0, roster.Absent),
		}, want: true},
		{name: "regular first session excused", term: regular, records: []Record{
			rec(0, roster.Excused), rec(2, roster.Absent),
		}, want: false},
		{name: "summer one attended", term: summer, records: []Record{
			rec(0, roster.Absent), rec(3, roster.Present),
		}, want: false},
		{name: "summer none attended", term: summer, records: []Record{
			rec(0, roster.Absent), rec(3, roster.Absent),
		}, want: true},
		{name: "window end is exclusive", term: regular, records: []Record{
			{SessionStart: weekStart.Add(7 * 24 * time.Hour), Status: roster.Absent},
		}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldDrop(tt.term, tt.records))
		})
	}
}

func TestShortTime(t *testing.T) {
	tests := []struct {
		t        time.Time
		wantTime string
		wantDay  string
	}{
		{t: time.Date(2021, 8, 23, 8, 0, 0, 0, time.UTC), wantTime: "8:00a", wantDay: "M"},
		{t: time.Date(2021, 8, 24, 0, 30, 0, 0, time.UTC), wantTime: "12:30a", wantDay: "T"},
		{t: time.Date(2021, 8, 26, 12, 0, 0, 0, time.UTC), wantTime: "12:00p", wantDay: "Th"},
		{t: time.Date(2021, 8, 28, 15, 45, 0, 0, time.UTC), wantTime: "3:45p", wantDay: "Sa"},
		{t: time.Date(2021, 8, 29, 23, 5, 0, 0, time.UTC), wantTime: "11:05p", wantDay: "Su"},
	}
	for _, tt := range tests {
		t.Run(tt.wantTime, func(t *testing.T) {
			assert.Equal(t, tt.wantTime, ShortTime(tt.t))
			assert.Equal(t, tt.wantDay, DayCode(tt.t))
		})
	}
}
