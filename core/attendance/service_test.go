package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/roster"
	testutil "github.com/trezcool/sections/tests"
)

var ctx = context.Background()

func statuses(t *testing.T, store roster.Store, sessionID int) map[int]roster.AttendanceStatus {
	t.Helper()
	out := make(map[int]roster.AttendanceStatus)
	err := store.Atomic(ctx, func(tx roster.Tx) error {
		atts, err := tx.QueryAttendances(ctx, testutil.Course, roster.AttendanceFilter{SessionIDs: []int{sessionID}})
		for _, att := range atts {
			_, dup := out[att.StudentID]
			assert.False(t, dup, "one record per student and session")
			out[att.StudentID] = att.Status
		}
		return err
	})
	require.NoError(t, err)
	return out
}

func TestStartSession(t *testing.T) {
	store := testutil.NewStore()
	svc := attendance.NewService(store)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	student := testutil.Actor(testutil.CreateStudent(t, store, "alice@test.edu"))
	start := lab.StartTime.Add(7 * 24 * time.Hour)

	first, err := svc.StartSession(ctx, staff, lab.ID, start)
	require.NoError(t, err)
	again, err := svc.StartSession(ctx, staff, lab.ID, start.In(time.FixedZone("PDT", -7*3600)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	next, err := svc.StartSession(ctx, staff, lab.ID, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)

	tests := []struct {
		name      string
		sectionID int
		start     time.Time
		wantKind  core.FailureKind
	}{
		{name: "student", sectionID: lab.ID, start: start, wantKind: core.FailureUnauthorized},
		{name: "unknown section", sectionID: 999, start: start, wantKind: core.FailureNotFound},
		{name: "no start time", sectionID: lab.ID, wantKind: core.FailureInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := staff
			if tt.wantKind == core.FailureUnauthorized {
				actor = student
			}
			_, err := svc.StartSession(ctx, actor, tt.sectionID, tt.start)
			assert.True(t, core.IsFailure(err, tt.wantKind), err)
		})
	}
}

func TestSetAttendance(t *testing.T) {
	store := testutil.NewStore()
	svc := attendance.NewService(store)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	alice := testutil.CreateStudent(t, store, "alice@test.edu")
	bob := testutil.CreateStudent(t, store, "bob@test.edu")
	testutil.Enroll(t, store, alice.ID, lab.ID)
	testutil.Enroll(t, store, bob.ID, lab.ID)

	sess, err := svc.StartSession(ctx, staff, lab.ID, lab.StartTime)
	require.NoError(t, err)

	_, err = svc.SetAttendance(ctx, staff, sess.ID, []string{"alice@test.edu", "bob@test.edu"}, roster.Present)
	require.NoError(t, err)
	assert.Equal(t, map[int]roster.AttendanceStatus{alice.ID: roster.Present, bob.ID: roster.Present}, statuses(t, store, sess.ID))

	// replaces rather than duplicates
	_, err = svc.SetAttendance(ctx, staff, sess.ID, []string{"ALICE@test.edu"}, "Absent")
	require.NoError(t, err)
	assert.Equal(t, map[int]roster.AttendanceStatus{alice.ID: roster.Absent, bob.ID: roster.Present}, statuses(t, store, sess.ID))

	// all or nothing
	_, err = svc.SetAttendance(ctx, staff, sess.ID, []string{"bob@test.edu", "ghost@test.edu"}, roster.Excused)
	assert.True(t, core.IsFailure(err, core.FailureUnknownStudent))
	assert.EqualError(t, err, "Student ghost@test.edu is not enrolled")
	assert.Equal(t, roster.Present, statuses(t, store, sess.ID)[bob.ID])

	// empty status clears
	_, err = svc.SetAttendance(ctx, staff, sess.ID, []string{"bob@test.edu"}, "")
	require.NoError(t, err)
	assert.Equal(t, map[int]roster.AttendanceStatus{alice.ID: roster.Absent}, statuses(t, store, sess.ID))

	_, err = svc.SetAttendance(ctx, staff, sess.ID, []string{"bob@test.edu"}, "late")
	assert.EqualError(t, err, "Unknown attendance status: late")
	_, err = svc.SetAttendance(ctx, staff, 999, []string{"bob@test.edu"}, roster.Present)
	assert.EqualError(t, err, "Session 999 does not exist.")
}
