package roster

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/policy"
)

var (
	// errors
	ErrUserNotFound    = errors.New("user not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrSessionNotFound = errors.New("session not found")
)

type (
	// UserFilter applies AND on its set fields.
	UserFilter struct {
		Emails  []string
		IsStaff *bool
	}

	// SectionFilter applies AND on its set fields.
	SectionFilter struct {
		IDs       []int
		Type      *core.SectionType
		StaffID   *int
		StartTime *time.Time
		Location  *string
	}

	AttendanceFilter struct {
		SessionIDs []int
		StudentID  int
	}

	UserRepository interface {
		// GetUser locks the user row until the end of the transaction when forUpdate is set.
		GetUser(ctx context.Context, course string, id int, forUpdate bool) (User, error)
		GetUserByEmail(ctx context.Context, course, email string) (User, error)
		QueryUsers(ctx context.Context, course string, filter UserFilter) ([]User, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	SectionRepository interface {
		// GetSection locks the section row until the end of the transaction when forUpdate is set.
		GetSection(ctx context.Context, course string, id int, forUpdate bool) (Section, error)
		QuerySections(ctx context.Context, course string, filter SectionFilter) ([]Section, error)
		CreateSection(ctx context.Context, sec Section) (Section, error)
		UpdateSection(ctx context.Context, sec Section) (Section, error)
		DeleteSection(ctx context.Context, course string, id int) error
	}

	// EnrollmentRepository manages the student-section association table.
	EnrollmentRepository interface {
		Enroll(ctx context.Context, course string, userID, sectionID int) error
		// Unenroll reports whether a link was removed.
		Unenroll(ctx context.Context, course string, userID, sectionID int) (bool, error)
		CountEnrolled(ctx context.Context, course string, sectionID int) (int, error)
		SectionStudents(ctx context.Context, course string, sectionID int) ([]User, error)
		StudentSections(ctx context.Context, course string, userID int) ([]Section, error)
	}

	SessionRepository interface {
		GetSession(ctx context.Context, course string, id int) (Session, error)
		// FindSession returns ErrSessionNotFound when no session starts at startTime.
		FindSession(ctx context.Context, course string, sectionID int, startTime time.Time) (Session, error)
		// CreateSession is a no-op returning the existing row if (section, start time) already exists.
		CreateSession(ctx context.Context, sess Session) (Session, error)
		QuerySessions(ctx context.Context, course string, sectionIDs ...int) ([]Session, error)
		DeleteSessions(ctx context.Context, course string, ids ...int) error
	}

	AttendanceRepository interface {
		QueryAttendances(ctx context.Context, course string, filter AttendanceFilter) ([]Attendance, error)
		CreateAttendance(ctx context.Context, att Attendance) (Attendance, error)
		// DeleteAttendance removes the record of a student for a session, if any.
		DeleteAttendance(ctx context.Context, course string, sessionID, studentID int) error
		DeleteSessionAttendances(ctx context.Context, course string, sessionIDs ...int) error
	}

	// Tx is every repository bound to one transaction.
	Tx interface {
		UserRepository
		SectionRepository
		EnrollmentRepository
		SessionRepository
		AttendanceRepository
		policy.Repository

		// ResetCourse removes every attendance, session, enrollment, section and user of the course.
		ResetCourse(ctx context.Context, course string) error
	}

	// Store runs units of work against the roster.
	Store interface {
		// Atomic runs fn inside a single transaction. The transaction is committed
		// only if fn returns nil; any error rolls every change back.
		Atomic(ctx context.Context, fn func(tx Tx) error) error
	}
)
