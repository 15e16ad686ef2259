package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core/roster"
)

// Users

func (tx *tx) GetUser(_ context.Context, course string, id int, _ bool) (roster.User, error) {
	if usr, ok := tx.t.users[id]; ok && usr.Course == course {
		return usr, nil
	}
	return roster.User{}, roster.ErrUserNotFound
}

func (tx *tx) GetUserByEmail(_ context.Context, course, email string) (roster.User, error) {
	for _, usr := range tx.t.users {
		if usr.Course == course && usr.Email == email {
			return usr, nil
		}
	}
	return roster.User{}, roster.ErrUserNotFound
}

func (tx *tx) QueryUsers(_ context.Context, course string, filter roster.UserFilter) ([]roster.User, error) {
	var emails map[string]bool
	if filter.Emails != nil {
		emails = make(map[string]bool, len(filter.Emails))
		for _, email := range filter.Emails {
			emails[email] = true
		}
	}
	users := make([]roster.User, 0)
	for _, usr := range tx.t.users {
		if usr.Course != course {
			continue
		}
		if emails != nil && !emails[usr.Email] {
			continue
		}
		if filter.IsStaff != nil && usr.IsStaff != *filter.IsStaff {
			continue
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (tx *tx) CreateUser(ctx context.Context, usr roster.User) (roster.User, error) {
	if _, err := tx.GetUserByEmail(ctx, usr.Course, usr.Email); err == nil {
		return roster.User{}, errors.Errorf("user %q already exists in course %q", usr.Email, usr.Course)
	}
	usr.ID = tx.t.nextID()
	tx.t.users[usr.ID] = usr
	return usr, nil
}

func (tx *tx) UpdateUser(_ context.Context, usr roster.User) (roster.User, error) {
	if old, ok := tx.t.users[usr.ID]; !ok || old.Course != usr.Course {
		return roster.User{}, roster.ErrUserNotFound
	}
	tx.t.users[usr.ID] = usr
	return usr, nil
}

// Sections

func (tx *tx) GetSection(_ context.Context, course string, id int, _ bool) (roster.Section, error) {
	if sec, ok := tx.t.sections[id]; ok && sec.Course == course {
		return sec, nil
	}
	return roster.Section{}, roster.ErrSectionNotFound
}

func (tx *tx) QuerySections(_ context.Context, course string, filter roster.SectionFilter) ([]roster.Section, error) {
	var ids map[int]bool
	if filter.IDs != nil {
		ids = make(map[int]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	sections := make([]roster.Section, 0)
	for _, sec := range tx.t.sections {
		switch {
		case sec.Course != course,
			ids != nil && !ids[sec.ID],
			filter.Type != nil && !sec.Type.Same(*filter.Type),
			filter.StaffID != nil && sec.StaffID != *filter.StaffID,
			filter.StartTime != nil && !sec.StartTime.Equal(*filter.StartTime),
			filter.Location != nil && sec.Location != *filter.Location:
			continue
		}
		sections = append(sections, sec)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

func (tx *tx) CreateSection(_ context.Context, sec roster.Section) (roster.Section, error) {
	sec.ID = tx.t.nextID()
	tx.t.sections[sec.ID] = sec
	return sec, nil
}

func (tx *tx) UpdateSection(_ context.Context, sec roster.Section) (roster.Section, error) {
	if old, ok := tx.t.sections[sec.ID]; !ok || old.Course != sec.Course {
		return roster.Section{}, roster.ErrSectionNotFound
	}
	tx.t.sections[sec.ID] = sec
	return sec, nil
}

func (tx *tx) DeleteSection(_ context.Context, course string, id int) error {
	if sec, ok := tx.t.sections[id]; !ok || sec.Course != course {
		return roster.ErrSectionNotFound
	}
	for key := range tx.t.enrollments {
		if key.sectionID == id {
			return errors.Errorf("section %d still has students", id)
		}
	}
	for _, sess := range tx.t.sessions {
		if sess.SectionID == id {
			return errors.Errorf("section %d still has sessions", id)
		}
	}
	delete(tx.t.sections, id)
	return nil
}

// Enrollments

func (tx *tx) Enroll(_ context.Context, course string, userID, sectionID int) error {
	tx.t.enrollments[enrollKey{userID: userID, sectionID: sectionID}] = course
	return nil
}

func (tx *tx) Unenroll(_ context.Context, course string, userID, sectionID int) (bool, error) {
	key := enrollKey{userID: userID, sectionID: sectionID}
	if c, ok := tx.t.enrollments[key]; !ok || c != course {
		return false, nil
	}
	delete(tx.t.enrollments, key)
	return true, nil
}

func (tx *tx) CountEnrolled(_ context.Context, course string, sectionID int) (int, error) {
	count := 0
	for key, c := range tx.t.enrollments {
		if c == course && key.sectionID == sectionID {
			count++
		}
	}
	return count, nil
}

func (tx *tx) SectionStudents(_ context.Context, course string, sectionID int) ([]roster.User, error) {
	users := make([]roster.User, 0)
	for key, c := range tx.t.enrollments {
		if c == course && key.sectionID == sectionID {
			users = append(users, tx.t.users[key.userID])
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (tx *tx) StudentSections(_ context.Context, course string, userID int) ([]roster.Section, error) {
	sections := make([]roster.Section, 0)
	for key, c := range tx.t.enrollments {
		if c == course && key.userID == userID {
			sections = append(sections, tx.t.sections[key.sectionID])
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

// Sessions

func (tx *tx) GetSession(_ context.Context, course string, id int) (roster.Session, error) {
	if sess, ok := tx.t.sessions[id]; ok && sess.Course == course {
		return sess, nil
	}
	return roster.Session{}, roster.ErrSessionNotFound
}

func (tx *tx) FindSession(_ context.Context, course string, sectionID int, startTime time.Time) (roster.Session, error) {
	for _, sess := range tx.t.sessions {
		if sess.Course == course && sess.SectionID == sectionID && sess.StartTime.Equal(startTime) {
			return sess, nil
		}
	}
	return roster.Session{}, roster.ErrSessionNotFound
}

func (tx *tx) CreateSession(ctx context.Context, sess roster.Session) (roster.Session, error) {
	if existing, err := tx.FindSession(ctx, sess.Course, sess.SectionID, sess.StartTime); err == nil {
		return existing, nil
	}
	sess.ID = tx.t.nextID()
	tx.t.sessions[sess.ID] = sess
	return sess, nil
}

func (tx *tx) QuerySessions(_ context.Context, course string, sectionIDs ...int) ([]roster.Session, error) {
	var ids map[int]bool
	if len(sectionIDs) > 0 {
		ids = make(map[int]bool, len(sectionIDs))
		for _, id := range sectionIDs {
			ids[id] = true
		}
	}
	sessions := make([]roster.Session, 0)
	for _, sess := range tx.t.sessions {
		if sess.Course == course && (ids == nil || ids[sess.SectionID]) {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (tx *tx) DeleteSessions(_ context.Context, course string, ids ...int) error {
	for _, id := range ids {
		if sess, ok := tx.t.sessions[id]; ok && sess.Course == course {
			delete(tx.t.sessions, id)
		}
	}
	return nil
}

// Attendances

func (tx *tx) QueryAttendances(_ context.Context, course string, filter roster.AttendanceFilter) ([]roster.Attendance, error) {
	var sessions map[int]bool
	if filter.SessionIDs != nil {
		sessions = make(map[int]bool, len(filter.SessionIDs))
		for _, id := range filter.SessionIDs {
			sessions[id] = true
		}
	}
	atts := make([]roster.Attendance, 0)
	for _, att := range tx.t.attendances {
		switch {
		case att.Course != course,
			sessions != nil && !sessions[att.SessionID],
			filter.StudentID != 0 && att.StudentID != filter.StudentID:
			continue
		}
		atts = append(atts, att)
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].ID < atts[j].ID })
	return atts, nil
}

func (tx *tx) CreateAttendance(_ context.Context, att roster.Attendance) (roster.Attendance, error) {
	for _, existing := range tx.t.attendances {
		if existing.SessionID == att.SessionID && existing.StudentID == att.StudentID {
			return roster.Attendance{}, errors.Errorf("attendance of student %d for session %d already exists", att.StudentID, att.SessionID)
		}
	}
	att.ID = tx.t.nextID()
	tx.t.attendances[att.ID] = att
	return att, nil
}

func (tx *tx) DeleteAttendance(_ context.Context, course string, sessionID, studentID int) error {
	for id, att := range tx.t.attendances {
		if att.Course == course && att.SessionID == sessionID && att.StudentID == studentID {
			delete(tx.t.attendances, id)
		}
	}
	return nil
}

func (tx *tx) DeleteSessionAttendances(_ context.Context, course string, sessionIDs ...int) error {
	ids := make(map[int]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		ids[id] = true
	}
	for id, att := range tx.t.attendances {
		if att.Course == course && ids[att.SessionID] {
			delete(tx.t.attendances, id)
		}
	}
	return nil
}
