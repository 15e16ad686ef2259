package echoapi

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/report"
	"github.com/trezcool/sections/core/roster"
)

type sectionsApi struct {
	enrollment *enrollment.Service
	attendance *attendance.Service
	reports    *report.Service
	validate   *validator.Validate
}

func registerSectionsAPI(g *echo.Group, deps ServerDeps) {
	api := sectionsApi{
		enrollment: deps.Enrollment,
		attendance: deps.Attendance,
		reports:    deps.Reports,
		validate:   deps.Validate,
	}

	g.POST("/refresh_state", api.refreshState, guard(access.OpRefreshState))

	// students
	g.POST("/join_section", api.joinSection, guard(access.OpJoinSection))
	g.POST("/leave_section", api.leaveSection, guard(access.OpLeaveSection))

	// staff
	g.POST("/claim_section", api.claimSection, guard(access.OpClaimSection))
	g.POST("/unassign_section", api.unassignSection, guard(access.OpUnassignSection))
	g.POST("/add_student", api.addStudent, guard(access.OpAddStudent))
	g.POST("/add_students", api.addStudents, guard(access.OpAddStudent))
	g.POST("/remove_student", api.removeStudent, guard(access.OpRemoveStudent))
	g.POST("/fetch_section", api.fetchSection, guard(access.OpFetchSection))
	g.POST("/fetch_user", api.fetchUser, guard(access.OpFetchUser))
	g.POST("/start_session", api.startSession, guard(access.OpStartSession))
	g.POST("/set_attendance", api.setAttendance, guard(access.OpSetAttendance))
	g.POST("/export_attendance", api.exportAttendance, guard(access.OpExportAttendance))
	g.POST("/update_section_description", api.updateDescription, guard(access.OpUpdateDescription))
	g.POST("/update_section_call_link", api.updateCallLink, guard(access.OpUpdateCallLink))
	g.POST("/update_section_enrollment_code", api.updateEnrollmentCode, guard(access.OpUpdateCode))
}

// Handlers

func (api *sectionsApi) refreshState(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return api.state(ctx, actor)
}

func (api *sectionsApi) state(ctx echo.Context, actor access.Actor) error {
	state, err := api.reports.State(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "rendering state")
	}
	return ok(ctx, state)
}

// section answers with the fresh detail of a section after a staff mutation.
func (api *sectionsApi) section(ctx echo.Context, actor access.Actor, sectionID int) error {
	detail, err := api.reports.FetchSection(ctx.Request().Context(), actor, sectionID)
	if err != nil {
		return errors.Wrap(err, "fetching section")
	}
	return ok(ctx, detail)
}

func (api *sectionsApi) joinSection(ctx echo.Context) error {
	var data JoinRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.Join(ctx.Request().Context(), actor, data.SectionID, data.Code); err != nil {
		return errors.Wrap(err, "joining section")
	}
	return api.state(ctx, actor)
}

func (api *sectionsApi) leaveSection(ctx echo.Context) error {
	var data SectionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.Leave(ctx.Request().Context(), actor, data.SectionID); err != nil {
		return errors.Wrap(err, "leaving section")
	}
	return api.state(ctx, actor)
}

func (api *sectionsApi) claimSection(ctx echo.Context) error {
	return api.sectionAction(ctx, func(c context.Context, actor access.Actor, id int) error {
		_, err := api.enrollment.Claim(c, actor, id)
		return errors.Wrap(err, "claiming section")
	})
}

func (api *sectionsApi) unassignSection(ctx echo.Context) error {
	return api.sectionAction(ctx, func(c context.Context, actor access.Actor, id int) error {
		_, err := api.enrollment.Unassign(c, actor, id)
		return errors.Wrap(err, "unassigning section")
	})
}

// sectionAction runs a mutation that only needs a section id and answers with the section detail.
func (api *sectionsApi) sectionAction(ctx echo.Context, run func(c context.Context, actor access.Actor, id int) error) error {
	var data SectionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = run(ctx.Request().Context(), actor, data.SectionID); err != nil {
		return err
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) addStudent(ctx echo.Context) error {
	var data StudentRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.AddStudent(ctx.Request().Context(), actor, data.SectionID, data.Email); err != nil {
		return errors.Wrap(err, "adding student")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) addStudents(ctx echo.Context) error {
	var data StudentsRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	emails := core.ParseEmails(data.Emails)
	if err = api.enrollment.AddStudents(ctx.Request().Context(), actor, data.SectionID, emails); err != nil {
		return errors.Wrap(err, "adding students")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) removeStudent(ctx echo.Context) error {
	var data StudentRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.RemoveStudent(ctx.Request().Context(), actor, data.SectionID, data.Email); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) fetchSection(ctx echo.Context) error {
	var data SectionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) fetchUser(ctx echo.Context) error {
	var data UserRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	detail, err := api.reports.FetchUser(ctx.Request().Context(), actor, data.Email)
	if err != nil {
		return errors.Wrap(err, "fetching user")
	}
	return ok(ctx, detail)
}

func (api *sectionsApi) startSession(ctx echo.Context) error {
	var data StartSessionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.attendance.StartSession(ctx.Request().Context(), actor, data.SectionID, unixTime(data.StartTime)); err != nil {
		return errors.Wrap(err, "starting session")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) setAttendance(ctx echo.Context) error {
	var data SetAttendanceRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	sess, err := api.attendance.SetAttendance(
		ctx.Request().Context(), actor,
		data.SessionID, data.Students, roster.AttendanceStatus(data.Status),
	)
	if err != nil {
		return errors.Wrap(err, "setting attendance")
	}
	return api.section(ctx, actor, sess.SectionID)
}

func (api *sectionsApi) exportAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	export, err := api.reports.ExportAttendance(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	return ok(ctx, export)
}

func (api *sectionsApi) updateDescription(ctx echo.Context) error {
	var data DescriptionRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateDescription(ctx.Request().Context(), actor, data.SectionID, data.Description); err != nil {
		return errors.Wrap(err, "updating description")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) updateCallLink(ctx echo.Context) error {
	var data CallLinkRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateCallLink(ctx.Request().Context(), actor, data.SectionID, data.CallLink); err != nil {
		return errors.Wrap(err, "updating call link")
	}
	return api.section(ctx, actor, data.SectionID)
}

func (api *sectionsApi) updateEnrollmentCode(ctx echo.Context) error {
	var data EnrollmentCodeRequest
	if err := bind(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if _, err = api.enrollment.UpdateEnrollmentCode(ctx.Request().Context(), actor, data.SectionID, data.EnrollmentCode); err != nil {
		return errors.Wrap(err, "updating enrollment code")
	}
	return api.section(ctx, actor, data.SectionID)
}
