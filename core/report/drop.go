package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
)

// Record is one attendance mark with the start time of its session.
type Record struct {
	SessionStart time.Time
	Status       roster.AttendanceStatus
}

// ShouldDrop decides from a student's attendance records whether they are a drop candidate:
// they missed the required first-week attendance, or have more absences than allowed.
//
// In summer terms one attended first-week session suffices; otherwise the student must have
// attended the earliest first-week session they were marked at.
func ShouldDrop(term core.TermConfig, records []Record) bool {
	start, end := term.FirstWeekStart, term.FirstWeekEnd()

	var firstWeek []Record
	absences := 0
	for _, rec := range records {
		if rec.Status == roster.Absent {
			absences++
		}
		if !rec.SessionStart.Before(start) && rec.SessionStart.Before(end) {
			firstWeek = append(firstWeek, rec)
		}
	}
	if absences > term.MaxAbsences {
		return true
	}
	if len(firstWeek) == 0 {
		return false
	}

	if term.IsSummer {
		for _, rec := range firstWeek {
			if rec.Status.Attended() {
				return false
			}
		}
		return true
	}
	sort.SliceStable(firstWeek, func(i, j int) bool { return firstWeek[i].SessionStart.Before(firstWeek[j].SessionStart) })
	return !firstWeek[0].Status.Attended()
}

// DropCandidates returns the emails of enrolled students who should be dropped, sorted.
func (svc *Service) DropCandidates(ctx context.Context, actor access.Actor) ([]string, error) {
	if err := access.Check(actor, access.OpDropCandidates); err != nil {
		return nil, err
	}
	emails := make([]string, 0)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sessions, err := tx.QuerySessions(ctx, actor.Course)
		if err != nil {
			return errors.Wrap(err, "querying sessions")
		}
		starts := make(map[int]time.Time, len(sessions))
		for _, sess := range sessions {
			starts[sess.ID] = sess.StartTime
		}

		notStaff := false
		students, err := tx.QueryUsers(ctx, actor.Course, roster.UserFilter{IsStaff: &notStaff})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		for _, usr := range students {
			sections, err := tx.StudentSections(ctx, actor.Course, usr.ID)
			if err != nil {
				return errors.Wrap(err, "querying student sections")
			}
			if len(sections) == 0 {
				continue
			}
			atts, err := tx.QueryAttendances(ctx, actor.Course, roster.AttendanceFilter{StudentID: usr.ID})
			if err != nil {
				return errors.Wrap(err, "querying attendances")
			}
			records := make([]Record, 0, len(atts))
			for _, att := range atts {
				records = append(records, Record{SessionStart: starts[att.SessionID], Status: att.Status})
			}
			if ShouldDrop(svc.term, records) {
				emails = append(emails, usr.Email)
			}
		}
		return nil
	})
	sort.Strings(emails)
	return emails, err
}
