package echoapi

import (
	"bytes"
	"context"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/report"
	"github.com/trezcool/sections/services/sheets"
)

type adminApi struct {
	conf       *core.Config
	enrollment *enrollment.Service
	reports    *report.Service
	importer   *importer.Service
	mailSvc    core.EmailService
	openSheet  func(ctx context.Context, url string) (importer.Source, error)
	validate   *validator.Validate
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{
		conf:       deps.Conf,
		enrollment: deps.Enrollment,
		reports:    deps.Reports,
		importer:   deps.Importer,
		mailSvc:    deps.MailSvc,
		openSheet:  deps.OpenSheet,
		validate:   deps.Validate,
	}
	if api.openSheet == nil {
		api.openSheet = func(ctx context.Context, url string) (importer.Source, error) {
			return sheets.NewGoogleSheet(ctx, api.conf.Google.CredentialsFile, url)
		}
	}

	g.POST("/update_section_location", api.updateLocation, guard(access.OpUpdateLocation))
	g.POST("/update_section_time", api.updateTime, guard(access.OpUpdateTime))
	g.POST("/update_section_tags", api.updateTags, guard(access.OpUpdateTags))
	g.POST("/update_section_capacity", api.updateCapacity, guard(access.OpUpdateCapacity))
	g.POST("/update_section_self_enroll", api.updateSelfEnroll, guard(access.OpUpdateSelfEnroll))
	g.POST("/create_section", api.createSection, guard(access.OpCreateSection))
	g.POST("/delete_section", api.deleteSection, guard(access.OpDeleteSection))
	g.POST("/update_config", api.updateConfig, guard(access.OpUpdateConfig))
	g.POST("/export_rosters", api.exportRosters, guard(access.OpExportRosters))
	g.POST("/remove_students", api.removeStudents, guard(access.OpRemoveStudents))
	g.POST("/reset_course", api.resetCourse, guard(access.OpResetCourse))
	g.POST("/import_sections", api.importSections, guard(access.OpImportSections))
	g.POST("/import_enrollment", api.importEnrollment, guard(access.OpImportEnrollment))
	g.POST("/get_drop_candidates", api.dropCandidates, guard(access.OpDropCandidates))
	g.POST("/get_student_section_ids", api.studentSectionIDs, guard(access.OpStudentSectionIDs))
	g.POST("/get_student_attendance", api.studentAttendance, guard(access.OpStudentAttendance))
	g.POST("/remind_tutors_to_setup_call_links", api.remindTutors, guard(access.OpRemindTutors))
}

// Handlers

func (api *adminApi) section(ctx echo.Context, actor access.Actor, sectionID int) error {
	detail, err := api.reports.FetchSection(ctx.Request().Context(), actor, sectionID)
	if err != nil {
		return errors.Wrap(err, "fetching section")
	}
	return ok(ctx, detail)
}

func (api *adminApi) state(ctx echo.Context, actor access.Actor) error {
	state, err := api.reports.State(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "rendering state")
	}
	return ok(ctx, state)
}

func (api *adminApi) updateLocation(ctx echo.Context) error {
	var data LocationRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateLocation(ctx.Request().Context(), actor, data.SectionID, data.Location); err != nil {
		return errors.Wrap(err, "updating location")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *adminApi) updateTime(ctx echo.Context) error {
	var data TimeRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	start, end := unixTime(data.StartTime), unixTime(data.EndTime)
	if _, err = api.enrollment.UpdateTime(ctx.Request().Context(), actor, data.SectionID, start, end); err != nil {
		return errors.Wrap(err, "updating time")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *adminApi) updateTags(ctx echo.Context) error {
	var data TagsRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateTags(ctx.Request().Context(), actor, data.SectionID, data.Tags); err != nil {
		return errors.Wrap(err, "updating tags")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *adminApi) updateCapacity(ctx echo.Context) error {
	var data CapacityRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateCapacity(ctx.Request().Context(), actor, data.SectionID, *data.Capacity); err != nil {
		return errors.Wrap(err, "updating capacity")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *adminApi) updateSelfEnroll(ctx echo.Context) error {
	var data SelfEnrollRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateSelfEnroll(ctx.Request().Context(), actor, data.SectionID, *data.CanSelfEnroll); err != nil {
		return errors.Wrap(err, "updating self enroll")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *adminApi) createSection(ctx echo.Context) error {
	var data enrollment.NewSection
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	sec, err := api.enrollment.CreateSection(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return api.section(ctx, actor, sec.ID)
}

func (api *adminApi) deleteSection(ctx echo.Context) error {
	var data SectionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.DeleteSection(ctx.Request().Context(), actor, data.SectionID); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return api.state(ctx, actor)
}

func (api *adminApi) updateConfig(ctx echo.Context) error {
	var data ConfigRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, key := range policy.ToggleKeys() {
		known[key] = true
	}
	var fldErrs []core.FieldError
	for key := range data.Toggles {
		if !known[key] {
			fldErrs = append(fldErrs, core.FieldError{Field: key, Error: "unknown toggle"})
		}
	}
	if len(fldErrs) > 0 {
		sort.Slice(fldErrs, func(i, j int) bool { return fldErrs[i].Field < fldErrs[j].Field })
		return core.NewValidationError(errors.New("unknown toggles"), fldErrs...)
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	cfg, err := api.enrollment.UpdateConfig(ctx.Request().Context(), actor, policy.Update{Toggles: data.Toggles, Message: data.Message})
	if err != nil {
		return errors.Wrap(err, "updating config")
	}
	return ok(ctx, cfg)
}

// exportRosters downloads the rosters as csv, or xlsx with ?format=xlsx.
func (api *adminApi) exportRosters(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	rows, err := api.reports.RosterRows(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "exporting rosters")
	}

	var buf bytes.Buffer
	if ctx.QueryParam("format") == "xlsx" {
		if err = report.WriteRosterXLSX(&buf, rows); err != nil {
			return errors.Wrap(err, "writing rosters")
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="rosters.xlsx"`)
		return ctx.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
	if err = report.WriteRosterCSV(&buf, rows); err != nil {
		return errors.Wrap(err, "writing rosters")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="rosters.csv"`)
	return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (api *adminApi) removeStudents(ctx echo.Context) error {
	var data EmailsRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	removed, err := api.enrollment.RemoveStudents(ctx.Request().Context(), actor, core.ParseEmails(data.Emails))
	if err != nil {
		return errors.Wrap(err, "removing students")
	}
	return ok(ctx, removed)
}

func (api *adminApi) resetCourse(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.ResetCourse(ctx.Request().Context(), actor); err != nil {
		return errors.Wrap(err, "resetting course")
	}
	return api.state(ctx, actor)
}

func (api *adminApi) importSections(ctx echo.Context) error {
	return api.importSheet(ctx, api.importer.ImportSectionsFrom)
}

func (api *adminApi) importEnrollment(ctx echo.Context) error {
	return api.importSheet(ctx, api.importer.ImportEnrollmentFrom)
}

func (api *adminApi) importSheet(
	ctx echo.Context,
	run func(ctx context.Context, actor access.Actor, src importer.Source) (int, error),
) error {
	var data ImportRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	src, err := api.openSheet(ctx.Request().Context(), data.URL)
	if err != nil {
		if core.IsFailure(err) {
			return err
		}
		return core.NewFailure(core.FailureImport, "Unable to open spreadsheet: %s", data.URL)
	}
	if _, err = run(ctx.Request().Context(), actor, src); err != nil {
		return errors.Wrap(err, "importing sheet")
	}
	return api.state(ctx, actor)
}

func (api *adminApi) dropCandidates(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	emails, err := api.reports.DropCandidates(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "computing drop candidates")
	}
	return ok(ctx, report.DropCandidatesString(emails))
}

func (api *adminApi) studentSectionIDs(ctx echo.Context) error {
	var data UserRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	ids, err := api.reports.StudentSectionIDs(ctx.Request().Context(), actor, data.Email)
	if err != nil {
		return errors.Wrap(err, "getting student sections")
	}
	return ok(ctx, ids)
}

func (api *adminApi) studentAttendance(ctx echo.Context) error {
	var data StudentAttendanceRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	times, err := api.reports.StudentAttendance(ctx.Request().Context(), actor, data.Email, core.ParseSectionType(data.Type))
	if err != nil {
		return errors.Wrap(err, "getting student attendance")
	}
	return ok(ctx, times)
}

func (api *adminApi) remindTutors(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	count, err := api.enrollment.RemindTutors(ctx.Request().Context(), actor, api.mailSvc, api.conf.FrontendBaseURL)
	if err != nil {
		return errors.Wrap(err, "reminding tutors")
	}
	return ok(ctx, count)
}
