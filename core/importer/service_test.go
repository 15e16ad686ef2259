package importer_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/roster"
	testutil "github.com/trezcool/sections/tests"
)

var ctx = context.Background()

type sheets map[string][][]string

func (s sheets) Rows(_ context.Context, sheet string) ([][]string, error) {
	rows, ok := s[sheet]
	if !ok {
		return nil, errors.Errorf("no sheet %q", sheet)
	}
	return rows, nil
}

var sectionRows = [][]string{
	importer.SectionColumns,
	{"Tutor@test.edu", "Tina Tutor", "4", "online, fast", "TRUE", "Soda 271", "W", "10:00a", "11:30a", "lab"},
	{"", "", "", "", "", "", "", "", "", ""},
	{"tutor@test.edu", "Tina", "2", "", "false", "Cory 241", "F", "2:00p", "3:00p", "Exam Prep"},
}

func TestImportSections(t *testing.T) {
	store := testutil.NewStore()
	logger := new(testutil.Logger)
	svc := importer.NewService(store, logger, testutil.WeekStart)
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))
	staff := testutil.Actor(testutil.CreateStaff(t, store, "other@test.edu"))

	_, err := svc.ImportSectionsFrom(ctx, staff, sheets{importer.SectionsSheet: sectionRows})
	assert.True(t, core.IsFailure(err, core.FailureUnauthorized))

	_, err = svc.ImportSectionsFrom(ctx, admin, sheets{"Sheet1": sectionRows})
	assert.EqualError(t, err, "Unable to read spreadsheet. Make sure to put your data in a sheet named 'Sections'")

	count, err := svc.ImportSectionsFrom(ctx, admin, sheets{importer.SectionsSheet: sectionRows})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var sections []roster.Section
	var tutor roster.User
	err = store.Atomic(ctx, func(tx roster.Tx) (err error) {
		if sections, err = tx.QuerySections(ctx, testutil.Course, roster.SectionFilter{}); err != nil {
			return err
		}
		tutor, err = tx.GetUserByEmail(ctx, testutil.Course, "tutor@test.edu")
		return err
	})
	require.NoError(t, err)
	assert.True(t, tutor.IsStaff)
	assert.Equal(t, "Tina Tutor", tutor.Name)

	require.Len(t, sections, 2)
	roster.SortSections(sections)
	prep, lab := sections[0], sections[1]
	assert.Equal(t, "Exam Prep", prep.Type.String())
	assert.False(t, prep.CanSelfEnroll)
	assert.Equal(t, core.Lab, lab.Type)
	assert.Equal(t, tutor.ID, lab.StaffID)
	assert.Equal(t, 4, lab.Capacity)
	assert.Equal(t, []string{"online", "fast"}, lab.Tags)
	assert.Equal(t, time.Date(2021, 8, 25, 10, 0, 0, 0, time.UTC), lab.StartTime)
	assert.Equal(t, time.Date(2021, 8, 25, 11, 30, 0, 0, time.UTC), lab.EndTime)

	t.Run("one bad row imports nothing", func(t *testing.T) {
		rows := [][]string{
			importer.SectionColumns,
			{"a@test.edu", "A", "4", "", "true", "Soda", "M", "9:00a", "10:00a", "Lab"},
			{"b@test.edu", "B", "many", "", "true", "Soda", "M", "9:00a", "10:00a", "Lab"},
		}
		_, err := svc.ImportSections(ctx, admin, rows)
		assert.EqualError(t, err, "Invalid capacity: many")

		err = store.Atomic(ctx, func(tx roster.Tx) error {
			_, err := tx.GetUserByEmail(ctx, testutil.Course, "a@test.edu")
			assert.Equal(t, roster.ErrUserNotFound, errors.Cause(err))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("empty sheet", func(t *testing.T) {
		_, err := svc.ImportSections(ctx, admin, nil)
		assert.EqualError(t, err, "The sheet is empty.")
	})
}

func TestImportEnrollment(t *testing.T) {
	store := testutil.NewStore()
	svc := importer.NewService(store, new(testutil.Logger), testutil.WeekStart)
	admin := testutil.Actor(testutil.CreateAdmin(t, store, "head@test.edu"))
	_, err := svc.ImportSections(ctx, admin, sectionRows)
	require.NoError(t, err)

	rows := [][]string{
		importer.EnrollmentColumns,
		{"alice@test.edu", "Alice", "tutor@test.edu", "Soda 271", "W", "10:00a", "Lab"},
		{"bob@test.edu", "", "tutor@test.edu", "Cory 241", "F", "2:00p", "Exam Prep"},
	}
	count, err := svc.ImportEnrollmentFrom(ctx, admin, sheets{importer.EnrollmentSheet: rows})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = store.Atomic(ctx, func(tx roster.Tx) error {
		alice, err := tx.GetUserByEmail(ctx, testutil.Course, "alice@test.edu")
		require.NoError(t, err)
		assert.Equal(t, "Alice", alice.Name)
		sections, err := tx.StudentSections(ctx, testutil.Course, alice.ID)
		require.NoError(t, err)
		require.Len(t, sections, 1)
		assert.Equal(t, "Soda 271", sections[0].Location)

		bob, err := tx.GetUserByEmail(ctx, testutil.Course, "bob@test.edu")
		require.NoError(t, err)
		assert.Equal(t, "bob@test.edu", bob.Name)
		return nil
	})
	require.NoError(t, err)

	// re-importing keeps a single enrollment per type
	_, err = svc.ImportEnrollment(ctx, admin, rows)
	require.NoError(t, err)

	bad := [][]string{
		importer.EnrollmentColumns,
		{"carol@test.edu", "Carol", "tutor@test.edu", "Soda 999", "W", "10:00a", "Lab"},
	}
	_, err = svc.ImportEnrollment(ctx, admin, bad)
	assert.True(t, core.IsFailure(err, core.FailureImport))
	assert.Contains(t, err.Error(), "Unable to import enrollment data for carol@test.edu!")
}
