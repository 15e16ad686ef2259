package report

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
)

type Service struct {
	store roster.Store
	term  core.TermConfig
}

func NewService(store roster.Store, term core.TermConfig) *Service {
	return &Service{store: store, term: term}
}

// renderer caches staff lookups while rendering many sections in one transaction.
type renderer struct {
	ctx    context.Context
	tx     roster.Tx
	viewer access.Actor
	staff  map[int]roster.User
}

func newRenderer(ctx context.Context, tx roster.Tx, viewer access.Actor) *renderer {
	return &renderer{ctx: ctx, tx: tx, viewer: viewer, staff: make(map[int]roster.User)}
}

func (r *renderer) section(sec roster.Section) (SectionView, error) {
	students, err := r.tx.SectionStudents(r.ctx, sec.Course, sec.ID)
	if err != nil {
		return SectionView{}, errors.Wrap(err, "querying section students")
	}
	var staff *roster.User
	if sec.HasStaff() {
		usr, ok := r.staff[sec.StaffID]
		if !ok {
			if usr, err = r.tx.GetUser(r.ctx, sec.Course, sec.StaffID, false); err != nil {
				return SectionView{}, errors.Wrap(err, "getting section staff")
			}
			r.staff[sec.StaffID] = usr
		}
		staff = &usr
	}
	return sectionView(r.viewer, sec, staff, students), nil
}

func (r *renderer) sections(sections []roster.Section) ([]SectionView, error) {
	roster.SortSections(sections)
	views := make([]SectionView, 0, len(sections))
	for _, sec := range sections {
		view, err := r.section(sec)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// attendances renders the attendance history of one student.
func (r *renderer) attendances(usr roster.User) ([]AttendanceView, error) {
	atts, err := r.tx.QueryAttendances(r.ctx, usr.Course, roster.AttendanceFilter{StudentID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying attendances")
	}
	views := make([]AttendanceView, 0, len(atts))
	for _, att := range atts {
		sess, err := r.tx.GetSession(r.ctx, usr.Course, att.SessionID)
		if err != nil {
			return nil, errors.Wrap(err, "getting session")
		}
		views = append(views, AttendanceView{
			SessionID:        sess.ID,
			SectionID:        sess.SectionID,
			SessionStartTime: sess.StartTime.Unix(),
			Status:           string(att.Status),
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].SessionStartTime < views[j].SessionStartTime })
	return views, nil
}

func (r *renderer) user(usr roster.User) (*UserDetail, error) {
	sections, err := r.tx.StudentSections(r.ctx, usr.Course, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student sections")
	}
	detail := &UserDetail{UserView: userView(r.viewer, usr)}
	if detail.Sections, err = r.sections(sections); err != nil {
		return nil, err
	}
	if detail.Attendances, err = r.attendances(usr); err != nil {
		return nil, err
	}
	return detail, nil
}

// State is everything a client needs to render the course: all sections, the actor's
// own sections and history, and the policy config.
func (svc *Service) State(ctx context.Context, actor access.Actor) (State, error) {
	if err := access.Check(actor, access.OpRefreshState); err != nil {
		return State{}, err
	}
	state := State{
		Course:           actor.Course,
		EnrolledSections: []SectionView{},
		TaughtSections:   []SectionView{},
	}
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		r := newRenderer(ctx, tx, actor)

		if state.Config, err = policy.Get(ctx, tx, actor.Course); err != nil {
			return err
		}
		all, err := tx.QuerySections(ctx, actor.Course, roster.SectionFilter{})
		if err != nil {
			return errors.Wrap(err, "querying sections")
		}
		if state.Sections, err = r.sections(all); err != nil {
			return err
		}
		if !actor.IsAuthenticated() {
			return nil
		}

		if state.CurrentUser, err = r.user(actor.User); err != nil {
			return err
		}
		state.EnrolledSections = state.CurrentUser.Sections
		for _, view := range state.Sections {
			if view.Staff != nil && view.Staff.ID == actor.User.ID {
				state.TaughtSections = append(state.TaughtSections, view)
			}
		}
		return nil
	})
	return state, err
}

// FetchSection renders a section with all its sessions and their attendance.
func (svc *Service) FetchSection(ctx context.Context, actor access.Actor, sectionID int) (SectionDetail, error) {
	if err := access.Check(actor, access.OpFetchSection); err != nil {
		return SectionDetail{}, err
	}
	var detail SectionDetail
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		r := newRenderer(ctx, tx, actor)
		sec, err := roster.FindSection(ctx, tx, actor.Course, sectionID, false)
		if err != nil {
			return err
		}
		if detail.SectionView, err = r.section(sec); err != nil {
			return err
		}

		sessions, err := tx.QuerySessions(ctx, actor.Course, sec.ID)
		if err != nil {
			return errors.Wrap(err, "querying sessions")
		}
		sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartTime.Before(sessions[j].StartTime) })

		detail.Sessions = make([]SessionView, 0, len(sessions))
		for _, sess := range sessions {
			atts, err := tx.QueryAttendances(ctx, actor.Course, roster.AttendanceFilter{SessionIDs: []int{sess.ID}})
			if err != nil {
				return errors.Wrap(err, "querying attendances")
			}
			view := SessionView{
				ID:          sess.ID,
				SectionID:   sess.SectionID,
				StartTime:   sess.StartTime.Unix(),
				Attendances: make([]AttendanceView, 0, len(atts)),
			}
			for _, att := range atts {
				student, err := tx.GetUser(ctx, actor.Course, att.StudentID, false)
				if err != nil {
					return errors.Wrap(err, "getting student")
				}
				uv := userView(actor, student)
				view.Attendances = append(view.Attendances, AttendanceView{
					SessionID: sess.ID,
					Status:    string(att.Status),
					Student:   &uv,
				})
			}
			detail.Sessions = append(detail.Sessions, view)
		}
		return nil
	})
	return detail, err
}

// FetchUser renders a student with their sections and attendance history.
func (svc *Service) FetchUser(ctx context.Context, actor access.Actor, email string) (*UserDetail, error) {
	if err := access.Check(actor, access.OpFetchUser); err != nil {
		return nil, err
	}
	var detail *UserDetail
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		usr, err := roster.FindStudent(ctx, tx, actor.Course, email)
		if err != nil {
			return err
		}
		detail, err = newRenderer(ctx, tx, actor).user(usr)
		return err
	})
	return detail, err
}

// StudentSectionIDs returns the ids of the sections a student is enrolled in, ascending.
func (svc *Service) StudentSectionIDs(ctx context.Context, actor access.Actor, email string) ([]int, error) {
	if err := access.Check(actor, access.OpStudentSectionIDs); err != nil {
		return nil, err
	}
	ids := make([]int, 0)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		usr, err := roster.FindStudent(ctx, tx, actor.Course, email)
		if err != nil {
			return err
		}
		sections, err := tx.StudentSections(ctx, actor.Course, usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying student sections")
		}
		for _, sec := range sections {
			ids = append(ids, sec.ID)
		}
		return nil
	})
	sort.Ints(ids)
	return ids, err
}

// StudentAttendance returns the start times of the sessions of the given section type
// a student was marked present at, ascending.
func (svc *Service) StudentAttendance(ctx context.Context, actor access.Actor, email string, typ core.SectionType) ([]int64, error) {
	if err := access.Check(actor, access.OpStudentAttendance); err != nil {
		return nil, err
	}
	times := make([]int64, 0)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		usr, err := roster.FindStudent(ctx, tx, actor.Course, email)
		if err != nil {
			return err
		}
		atts, err := tx.QueryAttendances(ctx, actor.Course, roster.AttendanceFilter{StudentID: usr.ID})
		if err != nil {
			return errors.Wrap(err, "querying attendances")
		}
		sections := make(map[int]roster.Section)
		for _, att := range atts {
			if att.Status != roster.Present {
				continue
			}
			sess, err := tx.GetSession(ctx, actor.Course, att.SessionID)
			if err != nil {
				return errors.Wrap(err, "getting session")
			}
			sec, ok := sections[sess.SectionID]
			if !ok {
				if sec, err = tx.GetSection(ctx, actor.Course, sess.SectionID, false); err != nil {
					return errors.Wrap(err, "getting section")
				}
				sections[sec.ID] = sec
			}
			if sec.Type.Same(typ) {
				times = append(times, sess.StartTime.Unix())
			}
		}
		return nil
	})
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times, err
}
