package importer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/roster"
)

const (
	SectionsSheet   = "Sections"
	EnrollmentSheet = "Enrollment"
)

// Source yields the rows of a named sheet, header first.
type Source interface {
	Rows(ctx context.Context, sheet string) ([][]string, error)
}

type Service struct {
	store     roster.Store
	logger    core.Logger
	weekStart time.Time
}

// NewService builds an importer placing day/time cells in the week starting on weekStart.
func NewService(store roster.Store, logger core.Logger, weekStart time.Time) *Service {
	return &Service{store: store, logger: logger, weekStart: weekStart}
}

// ImportSectionsFrom reads the "Sections" sheet of src and imports it.
func (svc *Service) ImportSectionsFrom(ctx context.Context, actor access.Actor, src Source) (int, error) {
	if err := access.Check(actor, access.OpImportSections); err != nil {
		return 0, err
	}
	rows, err := src.Rows(ctx, SectionsSheet)
	if err != nil {
		svc.logger.Warn("reading sections sheet", err)
		return 0, core.NewFailure(core.FailureImport,
			"Unable to read spreadsheet. Make sure to put your data in a sheet named '%s'", SectionsSheet)
	}
	return svc.ImportSections(ctx, actor, rows)
}

// ImportEnrollmentFrom reads the "Enrollment" sheet of src and imports it.
func (svc *Service) ImportEnrollmentFrom(ctx context.Context, actor access.Actor, src Source) (int, error) {
	if err := access.Check(actor, access.OpImportEnrollment); err != nil {
		return 0, err
	}
	rows, err := src.Rows(ctx, EnrollmentSheet)
	if err != nil {
		svc.logger.Warn("reading enrollment sheet", err)
		return 0, core.NewFailure(core.FailureImport,
			"Unable to read spreadsheet. Make sure to put your data in a sheet named '%s'", EnrollmentSheet)
	}
	return svc.ImportEnrollment(ctx, actor, rows)
}

// ImportSections creates one section per data row, creating missing staff users.
// Nothing is committed if any row fails.
func (svc *Service) ImportSections(ctx context.Context, actor access.Actor, rows [][]string) (int, error) {
	if err := access.Check(actor, access.OpImportSections); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, core.NewFailure(core.FailureImport, "The sheet is empty.")
	}
	h, err := ParseHeader(rows[0], SectionColumns)
	if err != nil {
		return 0, err
	}

	count := 0
	err = svc.store.Atomic(ctx, func(tx roster.Tx) error {
		count = 0
		for _, row := range rows[1:] {
			if blank(row) {
				continue
			}
			sec, err := svc.sectionFromRow(h, row)
			if err != nil {
				return err
			}
			sec.Course = actor.Course

			staff, err := roster.GetOrCreateUser(ctx, tx, actor.Course, h.Get(row, "Email"), h.Get(row, "Name"), true)
			if err != nil {
				return err
			}
			sec.StaffID = staff.ID

			if _, err = tx.CreateSection(ctx, sec); err != nil {
				return errors.Wrap(err, "creating section")
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	svc.logger.Info(fmt.Sprintf("imported %d sections", count), actor.User)
	return count, nil
}

func (svc *Service) sectionFromRow(h Header, row []string) (roster.Section, error) {
	capacity, err := strconv.Atoi(h.Get(row, "Capacity"))
	if err != nil || capacity < 0 {
		return roster.Section{}, core.NewFailure(core.FailureImport, "Invalid capacity: %s", h.Get(row, "Capacity"))
	}
	canSelfEnroll, err := ParseBool(h.Get(row, "Can Self Enroll"))
	if err != nil {
		return roster.Section{}, err
	}
	start, err := ParseTime(svc.weekStart, h.Get(row, "Day"), h.Get(row, "Start"))
	if err != nil {
		return roster.Section{}, err
	}
	end, err := ParseTime(svc.weekStart, h.Get(row, "Day"), h.Get(row, "End"))
	if err != nil {
		return roster.Section{}, err
	}
	return roster.Section{
		Type:          core.ParseSectionType(h.Get(row, "Type")),
		Capacity:      capacity,
		CanSelfEnroll: canSelfEnroll,
		Tags:          roster.SplitTags(h.Get(row, "Tags")),
		Location:      h.Get(row, "Location"),
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
	}, nil
}

// ImportEnrollment places each listed student into the section identified by its staff,
// type, start time and location, creating missing students. Nothing is committed if any row fails.
func (svc *Service) ImportEnrollment(ctx context.Context, actor access.Actor, rows [][]string) (int, error) {
	if err := access.Check(actor, access.OpImportEnrollment); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, core.NewFailure(core.FailureImport, "The sheet is empty.")
	}
	h, err := ParseHeader(rows[0], EnrollmentColumns)
	if err != nil {
		return 0, err
	}

	count := 0
	err = svc.store.Atomic(ctx, func(tx roster.Tx) error {
		count = 0
		for _, row := range rows[1:] {
			if blank(row) {
				continue
			}
			studentEmail := core.CleanString(h.Get(row, "Student Email"), true /* lower */)
			staffEmail := core.CleanString(h.Get(row, "Staff Email"), true /* lower */)
			location := h.Get(row, "Location")
			typ := core.ParseSectionType(h.Get(row, "Type"))
			start, err := ParseTime(svc.weekStart, h.Get(row, "Day"), h.Get(row, "Start"))
			if err != nil {
				return err
			}
			start = start.UTC()

			fail := core.NewFailure(core.FailureImport,
				"Unable to import enrollment data for %s! Trying to enroll in %s | %s | %s | %s",
				studentEmail, staffEmail, location, start.Format(time.RFC3339), typ)

			staff, err := tx.GetUserByEmail(ctx, actor.Course, staffEmail)
			if err != nil {
				if errors.Cause(err) == roster.ErrUserNotFound {
					return fail
				}
				return errors.Wrap(err, "finding staff")
			}
			matches, err := tx.QuerySections(ctx, actor.Course, roster.SectionFilter{
				Type:      &typ,
				StaffID:   &staff.ID,
				StartTime: &start,
				Location:  &location,
			})
			if err != nil {
				return errors.Wrap(err, "querying sections")
			}
			if len(matches) == 0 {
				return fail
			}

			student, err := roster.GetOrCreateUser(ctx, tx, actor.Course, studentEmail, h.Get(row, "Student Name"), false)
			if err != nil {
				return err
			}
			if err = enrollment.Place(ctx, tx, actor.Course, student.ID, matches[0]); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	svc.logger.Info(fmt.Sprintf("imported %d enrollments", count), actor.User)
	return count, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if core.CleanString(cell) != "" {
			return false
		}
	}
	return true
}
