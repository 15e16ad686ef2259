package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
)

type Service struct {
	store roster.Store
}

func NewService(store roster.Store) *Service {
	return &Service{store: store}
}

// StartSession returns the session of the section starting at startTime, creating it if needed.
func (svc *Service) StartSession(ctx context.Context, actor access.Actor, sectionID int, startTime time.Time) (roster.Session, error) {
	if err := access.Check(actor, access.OpStartSession); err != nil {
		return roster.Session{}, err
	}
	if startTime.IsZero() {
		return roster.Session{}, core.NewFailure(core.FailureInvalid, "Session start time is required.")
	}

	var sess roster.Session
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, false)
		if err != nil {
			return err
		}
		sess, err = tx.CreateSession(ctx, roster.Session{
			Course:    actor.Course,
			SectionID: sec.ID,
			StartTime: startTime.UTC(),
		})
		return errors.Wrap(err, "creating session")
	})
	return sess, err
}

// SetAttendance records status for every listed student of the session, replacing prior records.
// An empty status clears them. The batch is all-or-nothing: one unknown email aborts it.
func (svc *Service) SetAttendance(
	ctx context.Context,
	actor access.Actor,
	sessionID int,
	emails []string,
	status roster.AttendanceStatus,
) (roster.Session, error) {
	if err := access.Check(actor, access.OpSetAttendance); err != nil {
		return roster.Session{}, err
	}
	status, err := roster.ParseAttendanceStatus(string(status))
	if err != nil {
		return roster.Session{}, err
	}

	var sess roster.Session
	err = svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		sess, err = tx.GetSession(ctx, actor.Course, sessionID)
		if err != nil {
			if errors.Cause(err) == roster.ErrSessionNotFound {
				return core.NewFailure(core.FailureNotFound, "Session %d does not exist.", sessionID)
			}
			return errors.Wrap(err, "getting session")
		}

		students := make([]roster.User, 0, len(emails))
		for _, email := range emails {
			usr, err := roster.FindStudent(ctx, tx, actor.Course, email)
			if err != nil {
				return err
			}
			students = append(students, usr)
		}

		for _, usr := range students {
			if err = tx.DeleteAttendance(ctx, actor.Course, sess.ID, usr.ID); err != nil {
				return errors.Wrap(err, "deleting attendance")
			}
			if status == "" {
				continue
			}
			_, err = tx.CreateAttendance(ctx, roster.Attendance{
				Course:    actor.Course,
				SessionID: sess.ID,
				StudentID: usr.ID,
				Status:    status,
			})
			if err != nil {
				return errors.Wrap(err, "creating attendance")
			}
		}
		return nil
	})
	return sess, err
}
