package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/sections/core"
)

var (
	SectionColumns    = []string{"Email", "Name", "Capacity", "Tags", "Can Self Enroll", "Location", "Day", "Start", "End", "Type"}
	EnrollmentColumns = []string{"Student Email", "Student Name", "Staff Email", "Location", "Day", "Start", "Type"}

	dayOffsets = map[string]int{"M": 0, "T": 1, "W": 2, "Th": 3, "F": 4, "Sa": 5, "Su": 6}
	clockRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([ap])m?$`)
)

// Header maps each required column name to its index in a row.
type Header map[string]int

// ParseHeader checks that the header row names every column exactly once and nothing else.
func ParseHeader(row []string, columns []string) (Header, error) {
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}

	h := make(Header, len(columns))
	for i, entry := range row {
		entry = core.CleanString(entry)
		if !known[entry] {
			return nil, core.NewFailure(core.FailureImport, "Unable to process column header '%s'", entry)
		}
		if _, dup := h[entry]; dup {
			return nil, core.NewFailure(core.FailureImport, "Duplicate attribute: %s", entry)
		}
		h[entry] = i
	}
	for _, col := range columns {
		if _, ok := h[col]; !ok {
			return nil, core.NewFailure(core.FailureImport, "Unable to find column corresponding to attribute '%s'", col)
		}
	}
	return h, nil
}

// Get returns the trimmed cell of row under col; short rows yield "".
func (h Header) Get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return core.CleanString(row[i])
}

// ParseBool accepts only "true" and "false", case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(core.CleanString(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, core.NewFailure(core.FailureImport, "Unknown boolean value: %s", s)
}

// ParseTime places a day code ("M", "Th", ...) and a clock time ("08:00a", "3:30pm") in the
// reference week starting on weekStart (a Monday), in weekStart's location.
func ParseTime(weekStart time.Time, day, clock string) (time.Time, error) {
	offset, ok := dayOffsets[core.CleanString(day)]
	if !ok {
		return time.Time{}, core.NewFailure(core.FailureImport, "Unknown day: %s", day)
	}
	m := clockRegex.FindStringSubmatch(strings.ToLower(core.CleanString(clock)))
	if m == nil {
		return time.Time{}, core.NewFailure(core.FailureImport, "Unknown time: %s", clock)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, core.NewFailure(core.FailureImport, "Unknown time: %s", clock)
	}
	if hour == 12 {
		hour = 0
	}
	if m[3] == "p" {
		hour += 12
	}
	y, mo, d := weekStart.Date()
	return time.Date(y, mo, d+offset, hour, minute, 0, 0, weekStart.Location()), nil
}
