package enrollment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
	emailsvc "github.com/trezcool/sections/services/email"
	"github.com/trezcool/sections/storage/database/inmem"
	testutil "github.com/trezcool/sections/tests"
)

var ctx = context.Background()

func setup(t *testing.T) (*enrollment.Service, *inmem.DB) {
	store := testutil.NewStore()
	return enrollment.NewService(store, new(testutil.Logger)), store
}

func setConfig(t *testing.T, svc *enrollment.Service, store *inmem.DB, toggles map[string]bool) {
	t.Helper()
	admin := testutil.CreateAdmin(t, store, "head@test.edu")
	_, err := svc.UpdateConfig(ctx, testutil.Actor(admin), policy.Update{Toggles: toggles})
	require.NoError(t, err)
}

func failureMessage(t *testing.T, err error) string {
	t.Helper()
	f, ok := core.AsFailure(err)
	require.True(t, ok, "want a failure, got %v", err)
	return f.Message
}

func TestJoin(t *testing.T) {
	svc, store := setup(t)
	full := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 0, 8))
	lab1 := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 9))
	lab2 := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 10))
	disc := testutil.CreateSection(t, store, testutil.SectionAt(core.Discussion, 5, 11))

	locked := testutil.SectionAt(core.Lab, 5, 12)
	locked.EnrollmentCode = "SECRET"
	locked = testutil.CreateSection(t, store, locked)

	closed := testutil.SectionAt(core.Lab, 5, 13)
	closed.CanSelfEnroll = false
	closed = testutil.CreateSection(t, store, closed)

	student := testutil.Actor(testutil.CreateStudent(t, store, "alice@test.edu"))

	tests := []struct {
		name    string
		section int
		code    string
		wantMsg string
		want    []int
	}{
		{name: "unknown section", section: 999, wantMsg: "Section 999 does not exist."},
		{name: "full section", section: full.ID, wantMsg: "Target section is already full."},
		{name: "join a lab", section: lab1.ID, want: []int{lab1.ID}},
		{name: "join again is a no-op", section: lab1.ID, want: []int{lab1.ID}},
		{name: "join another type", section: disc.ID, want: []int{lab1.ID, disc.ID}},
		{name: "swap labs", section: lab2.ID, want: []int{lab2.ID, disc.ID}},
		{name: "missing code", section: locked.ID, wantMsg: "Invalid enrollment code; cannot join section."},
		{name: "wrong code", section: locked.ID, code: "nope", wantMsg: "Invalid enrollment code; cannot join section."},
		{name: "right code", section: locked.ID, code: "SECRET", want: []int{disc.ID, locked.ID}},
		{name: "no self enroll", section: closed.ID, wantMsg: "Cannot self-join this section."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Join(ctx, student, tt.section, tt.code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, failureMessage(t, err))
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, sectionIDs(t, store, student.User.ID))
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.Join(ctx, access.AnonymousActor(testutil.Course), lab1.ID, "")
		assert.Equal(t, "You must be logged in to perform this action.", failureMessage(t, err))
	})
}

func TestJoinPolicy(t *testing.T) {
	tests := []struct {
		name    string
		toggles map[string]bool
		holdLab bool
		target  string
		staff   bool
		wantMsg string
	}{
		{name: "all allowed, first lab", toggles: map[string]bool{}, target: "lab2"},
		{name: "all allowed, switch labs", toggles: map[string]bool{}, holdLab: true, target: "lab2"},
		{
			name:    "change off, first lab",
			toggles: map[string]bool{"can_students_change_lab": false},
			target:  "lab2",
		},
		{
			name:    "change off, switch labs",
			toggles: map[string]bool{"can_students_change_lab": false},
			holdLab: true,
			target:  "lab2",
			wantMsg: "Students cannot change their enrolled lab!",
		},
		{
			name:    "join off, first lab",
			toggles: map[string]bool{"can_students_join_lab": false},
			target:  "lab2",
			wantMsg: "Students cannot add themselves to labs!",
		},
		{
			name:    "join off, switch labs",
			toggles: map[string]bool{"can_students_join_lab": false},
			holdLab: true,
			target:  "lab2",
			wantMsg: "Students cannot change their enrolled lab!",
		},
		{
			name:    "join off for another type",
			toggles: map[string]bool{"can_students_join_tutoring": false},
			target:  "tut",
			wantMsg: "Students cannot add themselves to tutoring sections!",
		},
		{
			name:    "lab toggles leave tutoring open",
			toggles: map[string]bool{"can_students_join_lab": false, "can_students_change_lab": false},
			holdLab: true,
			target:  "tut",
		},
		{
			name:    "staff are not gated",
			toggles: map[string]bool{"can_students_join_lab": false, "can_students_change_lab": false},
			holdLab: true,
			target:  "lab2",
			staff:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setup(t)
			sections := map[string]roster.Section{
				"lab1": testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8)),
				"lab2": testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 9)),
				"tut":  testutil.CreateSection(t, store, testutil.SectionAt(core.Tutoring, 5, 10)),
			}
			usr := testutil.CreateUser(t, store, "alice@test.edu", tt.staff, false)
			if tt.holdLab {
				testutil.Enroll(t, store, usr.ID, sections["lab1"].ID)
			}
			setConfig(t, svc, store, tt.toggles)

			target := sections[tt.target]
			_, err := svc.Join(ctx, testutil.Actor(usr), target.ID, "")
			held := sectionIDs(t, store, usr.ID)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, failureMessage(t, err))
				if tt.holdLab {
					assert.Equal(t, []int{sections["lab1"].ID}, held)
				} else {
					assert.Empty(t, held)
				}
				return
			}
			require.NoError(t, err)
			assert.Contains(t, held, target.ID)
			if tt.holdLab && target.Type.Same(core.Lab) {
				assert.NotContains(t, held, sections["lab1"].ID)
			}
		})
	}
}

func TestLeavePolicy(t *testing.T) {
	svc, store := setup(t)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	alice := testutil.CreateStudent(t, store, "alice@test.edu")
	tutor := testutil.CreateStaff(t, store, "tutor@test.edu")
	testutil.Enroll(t, store, alice.ID, lab.ID)
	testutil.Enroll(t, store, tutor.ID, lab.ID)

	setConfig(t, svc, store, map[string]bool{"can_students_change_lab": false})

	for _, usr := range []roster.User{alice, tutor} {
		err := svc.Leave(ctx, testutil.Actor(usr), lab.ID)
		assert.Equal(t, "Students cannot remove themselves from labs!", failureMessage(t, err), usr.Email)
	}
	assert.Len(t, testutil.Students(t, store, lab.ID), 2)

	setConfig(t, svc, store, map[string]bool{"can_students_change_lab": true})
	require.NoError(t, svc.Leave(ctx, testutil.Actor(alice), lab.ID))
}

func TestAddStudentsKeepsOneSectionPerType(t *testing.T) {
	const n = 10
	svc, store := setup(t)
	labA := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 1, 8))
	labB := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, n, 9))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))

	students := make([]access.Actor, n)
	for i := range students {
		students[i] = testutil.Actor(testutil.CreateStudent(t, store, string(rune('a'+i))+"@test.edu"))
	}

	var wg sync.WaitGroup
	for _, student := range students {
		wg.Add(2)
		go func(student access.Actor) {
			defer wg.Done()
			_, err := svc.Join(ctx, student, labB.ID, "")
			assert.NoError(t, err)
		}(student)
		go func(email string) {
			defer wg.Done()
			assert.NoError(t, svc.AddStudent(ctx, staff, labA.ID, email))
		}(student.User.Email)
	}
	wg.Wait()

	for _, student := range students {
		assert.Len(t, sectionIDs(t, store, student.User.ID), 1, student.User.Email)
	}
}

func TestJoinCapacityRace(t *testing.T) {
	svc, store := setup(t)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 1, 8))

	const n = 10
	actors := make([]access.Actor, n)
	for i := range actors {
		actors[i] = testutil.Actor(testutil.CreateStudent(t, store, string(rune('a'+i))+"@test.edu"))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Join(ctx, actors[i], lab.ID, "")
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.True(t, core.IsFailure(err, core.FailureCapacity), err)
	}
	assert.Equal(t, 1, joined)
	assert.Len(t, testutil.Students(t, store, lab.ID), 1)
}

func TestLeave(t *testing.T) {
	svc, store := setup(t)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	alice := testutil.Actor(testutil.CreateStudent(t, store, "alice@test.edu"))

	err := svc.Leave(ctx, alice, lab.ID)
	assert.Equal(t, "You are not enrolled in this section.", failureMessage(t, err))

	_, err = svc.Join(ctx, alice, lab.ID, "")
	require.NoError(t, err)
	require.NoError(t, svc.Leave(ctx, alice, lab.ID))
	assert.Empty(t, testutil.Students(t, store, lab.ID))
}

func TestClaimUnassign(t *testing.T) {
	svc, store := setup(t)
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	tutor := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	other := testutil.Actor(testutil.CreateStaff(t, store, "other@test.edu"))

	sec, err := svc.Claim(ctx, tutor, lab.ID)
	require.NoError(t, err)
	assert.Equal(t, tutor.User.ID, sec.StaffID)

	_, err = svc.Claim(ctx, other, lab.ID)
	assert.Equal(t, "Section is already claimed!", failureMessage(t, err))

	setConfig(t, svc, store, map[string]bool{"can_tutors_reassign_lab": false})
	_, err = svc.Unassign(ctx, other, lab.ID)
	assert.Equal(t, "Tutors cannot remove other tutors from sections!", failureMessage(t, err))

	sec, err = svc.Unassign(ctx, tutor, lab.ID)
	require.NoError(t, err)
	assert.False(t, sec.HasStaff())

	_, err = svc.Unassign(ctx, tutor, lab.ID)
	assert.Equal(t, "Section is already unassigned!", failureMessage(t, err))

	setConfig(t, svc, store, map[string]bool{"can_tutors_change_lab": false})
	_, err = svc.Claim(ctx, tutor, lab.ID)
	assert.Equal(t, "Tutors cannot add themselves to labs!", failureMessage(t, err))
}

func TestAddRemoveStudents(t *testing.T) {
	svc, store := setup(t)
	lab1 := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 1, 8))
	lab2 := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 1, 9))
	disc := testutil.CreateSection(t, store, testutil.SectionAt(core.Discussion, 1, 10))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))

	err := svc.AddStudents(ctx, staff, lab1.ID, nil)
	assert.Equal(t, "No student emails given.", failureMessage(t, err))

	// staff ignore capacity
	require.NoError(t, svc.AddStudents(ctx, staff, lab1.ID, []string{"alice@test.edu", "bob@test.edu"}))
	assert.Equal(t, []string{"alice@test.edu", "bob@test.edu"}, testutil.Students(t, store, lab1.ID))

	require.NoError(t, svc.AddStudent(ctx, staff, lab2.ID, "alice@test.edu"))
	require.NoError(t, svc.AddStudent(ctx, staff, disc.ID, "alice@test.edu"))
	assert.Equal(t, []string{"bob@test.edu"}, testutil.Students(t, store, lab1.ID))
	assert.Equal(t, []string{"alice@test.edu"}, testutil.Students(t, store, lab2.ID))

	err = svc.RemoveStudent(ctx, staff, lab1.ID, "alice@test.edu")
	assert.Equal(t, "Student alice@test.edu is not enrolled", failureMessage(t, err))
	require.NoError(t, svc.RemoveStudent(ctx, staff, lab1.ID, "bob@test.edu"))
	assert.Empty(t, testutil.Students(t, store, lab1.ID))

	removed, err := svc.RemoveStudents(ctx, admin, []string{"alice@test.edu", "ghost@test.edu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@test.edu"}, removed)
	assert.Empty(t, testutil.Students(t, store, lab2.ID))
	assert.Empty(t, testutil.Students(t, store, disc.ID))

	_, err = svc.RemoveStudents(ctx, staff, []string{"bob@test.edu"})
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))
}

func TestSections(t *testing.T) {
	svc, store := setup(t)
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "tutor@test.edu"))
	start := testutil.WeekStart.Add(9 * time.Hour)

	ns := enrollment.NewSection{
		Type:       "discussion",
		Capacity:   4,
		StaffEmail: "new-tutor@test.edu",
		Tags:       []string{"online, night", " fast "},
		Location:   " Soda 271 ",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
	}
	_, err := svc.CreateSection(ctx, staff, ns)
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))

	sec, err := svc.CreateSection(ctx, admin, ns)
	require.NoError(t, err)
	assert.Equal(t, core.Discussion, sec.Type)
	assert.Equal(t, []string{"online", "night", "fast"}, sec.Tags)
	assert.Equal(t, "Soda 271", sec.Location)
	assert.True(t, sec.HasStaff())

	bad := ns
	bad.EndTime = start
	_, err = svc.CreateSection(ctx, admin, bad)
	assert.Equal(t, "Section must end after it starts.", failureMessage(t, err))

	sec, err = svc.UpdateEnrollmentCode(ctx, staff, sec.ID, " abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", sec.EnrollmentCode)
	assert.True(t, sec.RequiresCode())

	_, err = svc.UpdateCapacity(ctx, staff, sec.ID, 10)
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))
	_, err = svc.UpdateCapacity(ctx, admin, sec.ID, -1)
	assert.Equal(t, "Capacity cannot be negative.", failureMessage(t, err))

	require.NoError(t, svc.AddStudent(ctx, staff, sec.ID, "alice@test.edu"))
	err = svc.DeleteSection(ctx, admin, sec.ID)
	assert.Equal(t, "Cannot delete a non-empty section", failureMessage(t, err))

	require.NoError(t, svc.RemoveStudent(ctx, staff, sec.ID, "alice@test.edu"))
	require.NoError(t, svc.DeleteSection(ctx, admin, sec.ID))
	err = svc.DeleteSection(ctx, admin, sec.ID)
	assert.True(t, core.IsFailure(err, core.FailureNotFound))
}

func TestRemindTutors(t *testing.T) {
	svc, store := setup(t)
	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleService(conf, nil)
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))
	tutor := testutil.CreateStaff(t, store, "tutor@test.edu")

	withLink := testutil.SectionAt(core.Lab, 5, 8)
	withLink.StaffID = tutor.ID
	withLink.CallLink = "https://zoom.test/1"
	testutil.CreateSection(t, store, withLink)

	count, err := svc.RemindTutors(ctx, admin, mailSvc, conf.FrontendBaseURL)
	require.NoError(t, err)
	assert.Zero(t, count)

	noLink := testutil.SectionAt(core.Discussion, 5, 9)
	noLink.StaffID = tutor.ID
	testutil.CreateSection(t, store, noLink)
	testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 10)) // unassigned

	count, err = svc.RemindTutors(ctx, admin, mailSvc, conf.FrontendBaseURL)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	sent := mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "tutor@test.edu", sent[0].To[0].Address)
	assert.Contains(t, sent[0].BodyStr, "Room 9")
}

func TestResetCourse(t *testing.T) {
	svc, store := setup(t)
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))
	lab := testutil.CreateSection(t, store, testutil.SectionAt(core.Lab, 5, 8))
	testutil.Enroll(t, store, testutil.CreateStudent(t, store, "alice@test.edu").ID, lab.ID)
	setConfig(t, svc, store, map[string]bool{"can_students_join_lab": false})

	require.NoError(t, svc.ResetCourse(ctx, admin))

	err := store.Atomic(ctx, func(tx roster.Tx) error {
		sections, err := tx.QuerySections(ctx, testutil.Course, roster.SectionFilter{})
		require.NoError(t, err)
		assert.Empty(t, sections)
		users, err := tx.QueryUsers(ctx, testutil.Course, roster.UserFilter{})
		require.NoError(t, err)
		assert.Empty(t, users)
		return nil
	})
	require.NoError(t, err)

	cfg, err := svc.Config(ctx, admin)
	require.NoError(t, err)
	assert.False(t, cfg.CanStudentsJoinLab, "config survives a reset")
}

func sectionIDs(t *testing.T, store *inmem.DB, userID int) []int {
	t.Helper()
	var ids []int
	err := store.Atomic(ctx, func(tx roster.Tx) error {
		sections, err := tx.StudentSections(ctx, testutil.Course, userID)
		for _, sec := range sections {
			ids = append(ids, sec.ID)
		}
		return err
	})
	require.NoError(t, err)
	return ids
}
