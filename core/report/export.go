package report

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
)

var (
	RosterHeader = []string{"Student Email", "Staff Email", "Location", "Day", "Start", "Type"}

	dayCodes = map[time.Weekday]string{
		time.Monday:    "M",
		time.Tuesday:   "T",
		time.Wednesday: "W",
		time.Thursday:  "Th",
		time.Friday:    "F",
		time.Saturday:  "Sa",
		time.Sunday:    "Su",
	}
)

type (
	AttendanceEntry struct {
		SectionID int    `json:"section_id"`
		StartTime int64  `json:"start_time"`
		Status    string `json:"status"`
	}

	// TypeAttendance holds the attendance of every student for one section type.
	TypeAttendance struct {
		Type        string                       `json:"type"`
		Attendances map[string][]AttendanceEntry `json:"attendances"`
	}

	RosterRow struct {
		StudentEmail string
		StaffEmail   string
		Location     string
		Day          string
		Start        string
		Type         string
	}
)

func (row RosterRow) Record() []string {
	return []string{row.StudentEmail, row.StaffEmail, row.Location, row.Day, row.Start, row.Type}
}

// DayCode is the weekday code of t, such as "M" or "Th".
func DayCode(t time.Time) string {
	return dayCodes[t.Weekday()]
}

// ShortTime formats t as a lowercase 12-hour time without the trailing "m", such as "8:00a".
func ShortTime(t time.Time) string {
	return strings.TrimSuffix(strings.ToLower(t.Format("3:04PM")), "m")
}

// ExportAttendance groups every attendance record by section type, keyed by student email.
// Every student appears under every type, with an empty list when unmarked.
func (svc *Service) ExportAttendance(ctx context.Context, actor access.Actor) ([]TypeAttendance, error) {
	if err := access.Check(actor, access.OpExportAttendance); err != nil {
		return nil, err
	}
	var export []TypeAttendance
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		notStaff := false
		students, err := tx.QueryUsers(ctx, actor.Course, roster.UserFilter{IsStaff: &notStaff})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		sections, err := tx.QuerySections(ctx, actor.Course, roster.SectionFilter{})
		if err != nil {
			return errors.Wrap(err, "querying sections")
		}

		byType := make(map[string][]roster.Section)
		for _, sec := range sections {
			byType[sec.Type.String()] = append(byType[sec.Type.String()], sec)
		}
		types := make([]string, 0, len(byType))
		for typ := range byType {
			types = append(types, typ)
		}
		sort.Strings(types)

		for _, typ := range types {
			entry := TypeAttendance{Type: typ, Attendances: make(map[string][]AttendanceEntry, len(students))}
			for _, usr := range students {
				entry.Attendances[usr.Email] = []AttendanceEntry{}
			}

			ids := make([]int, 0, len(byType[typ]))
			for _, sec := range byType[typ] {
				ids = append(ids, sec.ID)
			}
			sessions, err := tx.QuerySessions(ctx, actor.Course, ids...)
			if err != nil {
				return errors.Wrap(err, "querying sessions")
			}
			sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartTime.Before(sessions[j].StartTime) })

			for _, sess := range sessions {
				atts, err := tx.QueryAttendances(ctx, actor.Course, roster.AttendanceFilter{SessionIDs: []int{sess.ID}})
				if err != nil {
					return errors.Wrap(err, "querying attendances")
				}
				for _, att := range atts {
					student, err := tx.GetUser(ctx, actor.Course, att.StudentID, false)
					if err != nil {
						return errors.Wrap(err, "getting student")
					}
					entry.Attendances[student.Email] = append(entry.Attendances[student.Email], AttendanceEntry{
						SectionID: sess.SectionID,
						StartTime: sess.StartTime.Unix(),
						Status:    string(att.Status),
					})
				}
			}
			export = append(export, entry)
		}
		return nil
	})
	return export, err
}

// RosterRows lists one row per enrolled student per section, in section order.
// Day and time are rendered in the term's timezone.
func (svc *Service) RosterRows(ctx context.Context, actor access.Actor) ([]RosterRow, error) {
	if err := access.Check(actor, access.OpExportRosters); err != nil {
		return nil, err
	}
	loc := svc.term.Location
	if loc == nil {
		loc = time.UTC
	}

	rows := make([]RosterRow, 0)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sections, err := tx.QuerySections(ctx, actor.Course, roster.SectionFilter{})
		if err != nil {
			return errors.Wrap(err, "querying sections")
		}
		roster.SortSections(sections)

		staff := make(map[int]roster.User)
		for _, sec := range sections {
			var staffEmail string
			if sec.HasStaff() {
				usr, ok := staff[sec.StaffID]
				if !ok {
					if usr, err = tx.GetUser(ctx, actor.Course, sec.StaffID, false); err != nil {
						return errors.Wrap(err, "getting section staff")
					}
					staff[sec.StaffID] = usr
				}
				staffEmail = usr.Email
			}
			students, err := tx.SectionStudents(ctx, actor.Course, sec.ID)
			if err != nil {
				return errors.Wrap(err, "querying section students")
			}
			start := sec.StartTime.In(loc)
			for _, usr := range students {
				rows = append(rows, RosterRow{
					StudentEmail: usr.Email,
					StaffEmail:   staffEmail,
					Location:     sec.Location,
					Day:          DayCode(start),
					Start:        ShortTime(start),
					Type:         sec.Type.String(),
				})
			}
		}
		return nil
	})
	return rows, err
}

// WriteRosterCSV writes the header and rows as CSV.
func WriteRosterCSV(w io.Writer, rows []RosterRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RosterHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// WriteRosterXLSX writes the header and rows to a "Rosters" sheet of a new workbook.
func WriteRosterXLSX(w io.Writer, rows []RosterRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Rosters"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	write := func(rowNum int, values []string) error {
		for i, val := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return err
			}
			if err = f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(1, RosterHeader); err != nil {
		return errors.Wrap(err, "writing xlsx header")
	}
	for i, row := range rows {
		if err := write(i+2, row.Record()); err != nil {
			return errors.Wrap(err, "writing xlsx row")
		}
	}
	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// DropCandidatesString joins the drop candidates the way staff paste them into other tools.
func DropCandidatesString(emails []string) string {
	return strings.Join(emails, ", ")
}
