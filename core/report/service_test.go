package report_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/report"
	"github.com/trezcool/sections/core/roster"
	"github.com/trezcool/sections/storage/database/inmem"
	testutil "github.com/trezcool/sections/tests"
)

var ctx = context.Background()

type fixture struct {
	store        *inmem.DB
	svc          *report.Service
	attendance   *attendance.Service
	staff, admin access.Actor
	alice, bob   roster.User
	lab, disc    roster.Section
}

func setup(t *testing.T) *fixture {
	store := testutil.NewStore()
	f := &fixture{
		store:      store,
		svc:        report.NewService(store, testutil.NewConfig().Term),
		attendance: attendance.NewService(store),
		staff:      testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu")),
		admin:      testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu")),
		alice:      testutil.CreateStudent(t, store, "alice@test.edu"),
		bob:        testutil.CreateStudent(t, store, "bob@test.edu"),
	}

	lab := testutil.SectionAt(core.Lab, 5, 8)
	lab.StaffID = f.staff.User.ID
	lab.CallLink = "https://zoom.test/lab"
	lab.EnrollmentCode = "CODE"
	f.lab = testutil.CreateSection(t, store, lab)
	f.disc = testutil.CreateSection(t, store, testutil.SectionAt(core.Discussion, 5, 32))

	testutil.Enroll(t, store, f.alice.ID, f.lab.ID)
	testutil.Enroll(t, store, f.bob.ID, f.lab.ID)
	testutil.Enroll(t, store, f.alice.ID, f.disc.ID)
	return f
}

func (f *fixture) mark(t *testing.T, sec roster.Section, start time.Time, status roster.AttendanceStatus, emails ...string) {
	t.Helper()
	sess, err := f.attendance.StartSession(ctx, f.staff, sec.ID, start)
	require.NoError(t, err)
	_, err = f.attendance.SetAttendance(ctx, f.staff, sess.ID, emails, status)
	require.NoError(t, err)
}

func TestState(t *testing.T) {
	f := setup(t)

	t.Run("anonymous", func(t *testing.T) {
		state, err := f.svc.State(ctx, access.AnonymousActor(testutil.Course))
		require.NoError(t, err)
		assert.Nil(t, state.CurrentUser)
		require.Len(t, state.Sections, 2)
		assert.Equal(t, "Discussion", state.Sections[0].Type, "sections sort by type")

		lab := state.Sections[1]
		assert.Equal(t, 2, lab.NumStudentsEnrolled)
		for _, usr := range lab.Students {
			assert.Equal(t, report.UserView{Name: "Anon Student"}, usr)
		}
		assert.True(t, lab.NeedsEnrollmentCode)
		assert.Empty(t, lab.EnrollmentCode)
		assert.Empty(t, lab.CallLink)
		require.NotNil(t, lab.Staff)
		assert.Equal(t, "tutor@test.edu", lab.Staff.Email)
	})

	t.Run("student", func(t *testing.T) {
		state, err := f.svc.State(ctx, testutil.Actor(f.bob))
		require.NoError(t, err)
		require.NotNil(t, state.CurrentUser)
		require.Len(t, state.EnrolledSections, 1)

		lab := state.EnrolledSections[0]
		assert.Equal(t, "https://zoom.test/lab", lab.CallLink, "enrolled students see the call link")
		assert.Empty(t, lab.EnrollmentCode)
		emails := make([]string, 0)
		for _, usr := range lab.Students {
			emails = append(emails, usr.Email)
		}
		assert.ElementsMatch(t, []string{"", "bob@test.edu"}, emails)
		assert.Empty(t, state.TaughtSections)
	})

	t.Run("staff", func(t *testing.T) {
		state, err := f.svc.State(ctx, f.staff)
		require.NoError(t, err)
		require.Len(t, state.TaughtSections, 1)
		assert.Equal(t, "CODE", state.TaughtSections[0].EnrollmentCode)
		assert.Equal(t, "alice@test.edu", state.TaughtSections[0].Students[0].Email)
		assert.True(t, state.Config.CanStudentsJoinLab)
	})
}

func TestFetch(t *testing.T) {
	f := setup(t)
	f.mark(t, f.lab, f.lab.StartTime.Add(7*24*time.Hour), roster.Absent, "bob@test.edu")
	f.mark(t, f.lab, f.lab.StartTime, roster.Present, "alice@test.edu", "bob@test.edu")
	f.mark(t, f.disc, f.disc.StartTime, roster.Present, "alice@test.edu")

	detail, err := f.svc.FetchSection(ctx, f.staff, f.lab.ID)
	require.NoError(t, err)
	require.Len(t, detail.Sessions, 2)
	assert.Equal(t, f.lab.StartTime.Unix(), detail.Sessions[0].StartTime, "sessions sort by start time")
	assert.Len(t, detail.Sessions[0].Attendances, 2)
	require.Len(t, detail.Sessions[1].Attendances, 1)
	assert.Equal(t, "absent", detail.Sessions[1].Attendances[0].Status)
	assert.Equal(t, "bob@test.edu", detail.Sessions[1].Attendances[0].Student.Email)

	_, err = f.svc.FetchSection(ctx, testutil.Actor(f.alice), f.lab.ID)
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))

	usr, err := f.svc.FetchUser(ctx, f.staff, "ALICE@test.edu")
	require.NoError(t, err)
	assert.Len(t, usr.Sections, 2)
	assert.Len(t, usr.Attendances, 2)

	_, err = f.svc.FetchUser(ctx, f.staff, "ghost@test.edu")
	assert.EqualError(t, err, "Student ghost@test.edu is not enrolled")

	ids, err := f.svc.StudentSectionIDs(ctx, f.admin, "alice@test.edu")
	require.NoError(t, err)
	assert.Equal(t, []int{f.lab.ID, f.disc.ID}, ids)

	times, err := f.svc.StudentAttendance(ctx, f.admin, "bob@test.edu", core.Lab)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.lab.StartTime.Unix()}, times, "only present sessions count")
	times, err = f.svc.StudentAttendance(ctx, f.admin, "alice@test.edu", core.Discussion)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.disc.StartTime.Unix()}, times)
}

func TestExportAttendance(t *testing.T) {
	f := setup(t)
	f.mark(t, f.lab, f.lab.StartTime, roster.Excused, "bob@test.edu")

	export, err := f.svc.ExportAttendance(ctx, f.staff)
	require.NoError(t, err)
	require.Len(t, export, 2)
	assert.Equal(t, "Discussion", export[0].Type)
	assert.Equal(t, []report.AttendanceEntry{}, export[0].Attendances["bob@test.edu"])

	lab := export[1]
	assert.Equal(t, "Lab", lab.Type)
	assert.Empty(t, lab.Attendances["alice@test.edu"])
	assert.Equal(t, []report.AttendanceEntry{
		{SectionID: f.lab.ID, StartTime: f.lab.StartTime.Unix(), Status: "excused"},
	}, lab.Attendances["bob@test.edu"])
	_, hasStaff := lab.Attendances["tutor@test.edu"]
	assert.False(t, hasStaff)
}

func TestDropCandidates(t *testing.T) {
	store := testutil.NewStore()
	conf := testutil.NewConfig()
	conf.Term.IsSummer = false
	svc := report.NewService(store, conf.Term)
	att := attendance.NewService(store)
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))

	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 10, 8))
	for _, email := range []string{"zed@test.edu", "amy@test.edu", "kim@test.edu"} {
		testutil.Enroll(t, store, testutil.CreateStudent(t, store, email).ID, lab.ID)
	}
	testutil.CreateStudent(t, store, "gone@test.edu")

	firstWeek := conf.Term.FirstWeekStart.Add(10 * time.Hour)
	sess, err := att.StartSession(ctx, staff, lab.ID, firstWeek)
	require.NoError(t, err)
	_, err = att.SetAttendance(ctx, staff, sess.ID, []string{"zed@test.edu", "amy@test.edu", "gone@test.edu"}, roster.Absent)
	require.NoError(t, err)
	_, err = att.SetAttendance(ctx, staff, sess.ID, []string{"kim@test.edu"}, roster.Present)
	require.NoError(t, err)

	emails, err := svc.DropCandidates(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@test.edu", "zed@test.edu"}, emails, "sorted, enrolled students only")
	assert.Equal(t, "amy@test.edu, zed@test.edu", report.DropCandidatesString(emails))

	_, err = svc.DropCandidates(ctx, staff)
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))
}

func TestRosterExport(t *testing.T) {
	f := setup(t)

	rows, err := f.svc.RosterRows(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, []report.RosterRow{
		{StudentEmail: "alice@test.edu", Location: "Room 32", Day: "T", Start: "8:00a", Type: "Discussion"},
		{StudentEmail: "alice@test.edu", StaffEmail: "tutor@test.edu", Location: "Room 8", Day: "M", Start: "8:00a", Type: "Lab"},
		{StudentEmail: "bob@test.edu", StaffEmail: "tutor@test.edu", Location: "Room 8", Day: "M", Start: "8:00a", Type: "Lab"},
	}, rows)

	var csvBuf bytes.Buffer
	require.NoError(t, report.WriteRosterCSV(&csvBuf, rows))
	assert.Equal(t, "Student Email,Staff Email,Location,Day,Start,Type\n"+
		"alice@test.edu,,Room 32,T,8:00a,Discussion\n"+
		"alice@test.edu,tutor@test.edu,Room 8,M,8:00a,Lab\n"+
		"bob@test.edu,tutor@test.edu,Room 8,M,8:00a,Lab\n", csvBuf.String())

	var xlsxBuf bytes.Buffer
	require.NoError(t, report.WriteRosterXLSX(&xlsxBuf, rows))
	book, err := excelize.OpenReader(&xlsxBuf)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	sheet, err := book.GetRows("Rosters")
	require.NoError(t, err)
	require.Len(t, sheet, 4)
	assert.Equal(t, report.RosterHeader, sheet[0])
	assert.Equal(t, rows[2].Record(), sheet[3])

	_, err = f.svc.RosterRows(ctx, f.staff)
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))
}
