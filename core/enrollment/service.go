package enrollment

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
)

type Service struct {
	store  roster.Store
	logger core.Logger
}

func NewService(store roster.Store, logger core.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Config returns the policy config of the actor's course, creating it on first access.
func (svc *Service) Config(ctx context.Context, actor access.Actor) (policy.Config, error) {
	var cfg policy.Config
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		cfg, err = policy.Get(ctx, tx, actor.Course)
		return err
	})
	return cfg, err
}

func (svc *Service) UpdateConfig(ctx context.Context, actor access.Actor, upd policy.Update) (policy.Config, error) {
	if err := access.Check(actor, access.OpUpdateConfig); err != nil {
		return policy.Config{}, err
	}
	var cfg policy.Config
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		cfg, err = policy.Set(ctx, tx, actor.Course, upd)
		return err
	})
	return cfg, err
}

// Join enrolls the actor into the section, swapping out any section of the same type they hold.
func (svc *Service) Join(ctx context.Context, actor access.Actor, sectionID int, code string) (roster.Section, error) {
	if err := access.Check(actor, access.OpJoinSection); err != nil {
		return roster.Section{}, err
	}

	var target roster.Section
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		// lock order: section then user
		if target, err = roster.FindSection(ctx, tx, actor.Course, sectionID, true); err != nil {
			return err
		}
		usr, err := tx.GetUser(ctx, actor.Course, actor.User.ID, true)
		if err != nil {
			return errors.Wrap(err, "locking user")
		}
		cfg, err := policy.Get(ctx, tx, actor.Course)
		if err != nil {
			return err
		}

		held, err := sameTypeSections(ctx, tx, actor.Course, usr.ID, target.Type)
		if err != nil {
			return err
		}
		for _, sec := range held {
			if sec.ID == target.ID {
				return nil // already there
			}
		}

		if !actor.IsStaff() {
			if err = checkJoinPolicy(cfg, target.Type, len(held) > 0); err != nil {
				return err
			}
		}

		count, err := tx.CountEnrolled(ctx, actor.Course, target.ID)
		if err != nil {
			return errors.Wrap(err, "counting enrolled students")
		}
		if target.Capacity <= count {
			return core.NewFailure(core.FailureCapacity, "Target section is already full.")
		}
		if target.RequiresCode() && code != target.EnrollmentCode {
			return core.NewFailure(core.FailureInvalidCode, "Invalid enrollment code; cannot join section.")
		}
		if !target.CanSelfEnroll {
			return core.NewFailure(core.FailurePolicy, "Cannot self-join this section.")
		}

		return swapInto(ctx, tx, actor.Course, usr.ID, held, target.ID)
	})
	return target, err
}

// Leave removes the actor from the section.
func (svc *Service) Leave(ctx context.Context, actor access.Actor, sectionID int) error {
	if err := access.Check(actor, access.OpLeaveSection); err != nil {
		return err
	}
	return svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, true)
		if err != nil {
			return err
		}
		cfg, err := policy.Get(ctx, tx, actor.Course)
		if err != nil {
			return err
		}
		if !cfg.Allowed(policy.Students, policy.Change, sec.Type) {
			return core.NewFailure(core.FailurePolicy, "Students cannot remove themselves from %s!", sec.Type.Plural())
		}
		removed, err := tx.Unenroll(ctx, actor.Course, actor.User.ID, sec.ID)
		if err != nil {
			return errors.Wrap(err, "unenrolling")
		}
		if !removed {
			return core.NewFailure(core.FailureNotFound, "You are not enrolled in this section.")
		}
		return nil
	})
}

// Claim assigns the actor as the tutor of an unassigned section.
func (svc *Service) Claim(ctx context.Context, actor access.Actor, sectionID int) (roster.Section, error) {
	if err := access.Check(actor, access.OpClaimSection); err != nil {
		return roster.Section{}, err
	}
	var sec roster.Section
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		if sec, err = roster.FindSection(ctx, tx, actor.Course, sectionID, true); err != nil {
			return err
		}
		cfg, err := policy.Get(ctx, tx, actor.Course)
		if err != nil {
			return err
		}
		if !cfg.Allowed(policy.Tutors, policy.Change, sec.Type) {
			return core.NewFailure(core.FailurePolicy, "Tutors cannot add themselves to %s!", sec.Type.Plural())
		}
		if sec.HasStaff() {
			return core.NewFailure(core.FailureDuplicate, "Section is already claimed!")
		}
		sec.StaffID = actor.User.ID
		sec, err = tx.UpdateSection(ctx, sec)
		return errors.Wrap(err, "updating section")
	})
	return sec, err
}

// Unassign removes the tutor of a section. Removing oneself and removing someone else
// are gated by different toggles.
func (svc *Service) Unassign(ctx context.Context, actor access.Actor, sectionID int) (roster.Section, error) {
	if err := access.Check(actor, access.OpUnassignSection); err != nil {
		return roster.Section{}, err
	}
	var sec roster.Section
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		if sec, err = roster.FindSection(ctx, tx, actor.Course, sectionID, true); err != nil {
			return err
		}
		if !sec.HasStaff() {
			return core.NewFailure(core.FailureDuplicate, "Section is already unassigned!")
		}
		cfg, err := policy.Get(ctx, tx, actor.Course)
		if err != nil {
			return err
		}
		if sec.StaffID == actor.User.ID {
			if !cfg.Allowed(policy.Tutors, policy.Change, sec.Type) {
				return core.NewFailure(core.FailurePolicy, "Tutors cannot remove themselves from sections!")
			}
		} else if !cfg.Allowed(policy.Tutors, policy.Reassign, sec.Type) {
			return core.NewFailure(core.FailurePolicy, "Tutors cannot remove other tutors from sections!")
		}
		sec.StaffID = 0
		sec, err = tx.UpdateSection(ctx, sec)
		return errors.Wrap(err, "updating section")
	})
	return sec, err
}

// AddStudents enrolls students by email, creating unknown ones. Capacity, codes and
// policy toggles do not apply; each student leaves any other section of the same type.
func (svc *Service) AddStudents(ctx context.Context, actor access.Actor, sectionID int, emails []string) error {
	if err := access.Check(actor, access.OpAddStudent); err != nil {
		return err
	}
	if len(emails) == 0 {
		return core.NewFailure(core.FailureInvalid, "No student emails given.")
	}
	return svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, true)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(emails))
		for _, email := range emails {
			usr, err := roster.GetOrCreateUser(ctx, tx, actor.Course, email, "", false)
			if err != nil {
				return err
			}
			ids = append(ids, usr.ID)
		}
		// user rows are locked in id order
		sort.Ints(ids)
		for _, id := range ids {
			if err = Place(ctx, tx, actor.Course, id, sec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (svc *Service) AddStudent(ctx context.Context, actor access.Actor, sectionID int, email string) error {
	return svc.AddStudents(ctx, actor, sectionID, []string{email})
}

// RemoveStudent unenrolls one student from the section.
func (svc *Service) RemoveStudent(ctx context.Context, actor access.Actor, sectionID int, email string) error {
	if err := access.Check(actor, access.OpRemoveStudent); err != nil {
		return err
	}
	return svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, true)
		if err != nil {
			return err
		}
		usr, err := roster.FindStudent(ctx, tx, actor.Course, email)
		if err != nil {
			return err
		}
		removed, err := tx.Unenroll(ctx, actor.Course, usr.ID, sec.ID)
		if err != nil {
			return errors.Wrap(err, "unenrolling")
		}
		if !removed {
			return core.NewFailure(core.FailureUnknownStudent, "Student %s is not enrolled", usr.Email)
		}
		return nil
	})
}

// RemoveStudents drops every listed student from all their sections. Unknown emails are skipped.
// It returns the emails that were found.
func (svc *Service) RemoveStudents(ctx context.Context, actor access.Actor, emails []string) ([]string, error) {
	if err := access.Check(actor, access.OpRemoveStudents); err != nil {
		return nil, err
	}
	removed := make([]string, 0)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		removed = removed[:0]
		users, err := tx.QueryUsers(ctx, actor.Course, roster.UserFilter{Emails: emails})
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		for _, usr := range users {
			sections, err := tx.StudentSections(ctx, actor.Course, usr.ID)
			if err != nil {
				return errors.Wrap(err, "querying student sections")
			}
			for _, sec := range sections {
				if _, err = tx.Unenroll(ctx, actor.Course, usr.ID, sec.ID); err != nil {
					return errors.Wrap(err, "unenrolling")
				}
			}
			removed = append(removed, usr.Email)
		}
		return nil
	})
	if err == nil {
		svc.logger.Info(fmt.Sprintf("removed %d students from all sections", len(removed)), actor.User)
	}
	return removed, err
}

// DeleteSection removes an empty section with its sessions and their attendance.
func (svc *Service) DeleteSection(ctx context.Context, actor access.Actor, sectionID int) error {
	if err := access.Check(actor, access.OpDeleteSection); err != nil {
		return err
	}
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, true)
		if err != nil {
			return err
		}
		count, err := tx.CountEnrolled(ctx, actor.Course, sec.ID)
		if err != nil {
			return errors.Wrap(err, "counting enrolled students")
		}
		if count > 0 {
			return core.NewFailure(core.FailureInvalid, "Cannot delete a non-empty section")
		}

		sessions, err := tx.QuerySessions(ctx, actor.Course, sec.ID)
		if err != nil {
			return errors.Wrap(err, "querying sessions")
		}
		ids := make([]int, 0, len(sessions))
		for _, sess := range sessions {
			ids = append(ids, sess.ID)
		}
		if len(ids) > 0 {
			if err = tx.DeleteSessionAttendances(ctx, actor.Course, ids...); err != nil {
				return errors.Wrap(err, "deleting attendances")
			}
			if err = tx.DeleteSessions(ctx, actor.Course, ids...); err != nil {
				return errors.Wrap(err, "deleting sessions")
			}
		}
		return errors.Wrap(tx.DeleteSection(ctx, actor.Course, sec.ID), "deleting section")
	})
	if err == nil {
		svc.logger.Info(fmt.Sprintf("section %d deleted", sectionID), actor.User)
	}
	return err
}

// ResetCourse wipes every roster entity of the actor's course. The policy config is kept.
func (svc *Service) ResetCourse(ctx context.Context, actor access.Actor) error {
	if err := access.Check(actor, access.OpResetCourse); err != nil {
		return err
	}
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		return errors.Wrap(tx.ResetCourse(ctx, actor.Course), "resetting course")
	})
	if err == nil {
		svc.logger.Warn(fmt.Sprintf("course %q reset", actor.Course), actor.User)
	}
	return err
}

func sameTypeSections(ctx context.Context, tx roster.Tx, course string, userID int, typ core.SectionType) ([]roster.Section, error) {
	sections, err := tx.StudentSections(ctx, course, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student sections")
	}
	held := make([]roster.Section, 0, 1)
	for _, sec := range sections {
		if sec.Type.Same(typ) {
			held = append(held, sec)
		}
	}
	return held, nil
}

// swapInto unenrolls from held and enrolls into sectionID in the caller's transaction.
func swapInto(ctx context.Context, tx roster.Tx, course string, userID int, held []roster.Section, sectionID int) error {
	for _, sec := range held {
		if _, err := tx.Unenroll(ctx, course, userID, sec.ID); err != nil {
			return errors.Wrap(err, "unenrolling from previous section")
		}
	}
	return errors.Wrap(tx.Enroll(ctx, course, userID, sectionID), "enrolling")
}

// checkJoinPolicy applies the student toggles for joining a section of typ. Switching from
// a held section of the same type needs both the join and the change toggle.
func checkJoinPolicy(cfg policy.Config, typ core.SectionType, switching bool) error {
	if !cfg.Allowed(policy.Students, policy.Join, typ) {
		if switching {
			return core.NewFailure(core.FailurePolicy, "Students cannot change their enrolled %s!", typ.Noun())
		}
		return core.NewFailure(core.FailurePolicy, "Students cannot add themselves to %s!", typ.Plural())
	}
	if switching && !cfg.Allowed(policy.Students, policy.Change, typ) {
		return core.NewFailure(core.FailurePolicy, "Students cannot change their enrolled %s!", typ.Noun())
	}
	return nil
}

// Place puts a user into sec inside tx, keeping the one-section-per-type rule without any
// policy, capacity or code gating. It is a no-op when the user is already there.
// The user row is locked; callers that lock sec must do so first.
func Place(ctx context.Context, tx roster.Tx, course string, userID int, sec roster.Section) error {
	if _, err := tx.GetUser(ctx, course, userID, true); err != nil {
		return errors.Wrap(err, "locking user")
	}
	held, err := sameTypeSections(ctx, tx, course, userID, sec.Type)
	if err != nil {
		return err
	}
	for _, s := range held {
		if s.ID == sec.ID {
			return nil
		}
	}
	return swapInto(ctx, tx, course, userID, held, sec.ID)
}
