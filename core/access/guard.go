package access

import (
	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/roster"
)

// Role is the privilege of a caller; higher values include lower ones.
type Role int

const (
	Anonymous Role = iota
	Student
	Staff
	Admin
)

var roleNames = map[Role]string{
	Anonymous: "anonymous",
	Student:   "student",
	Staff:     "staff",
	Admin:     "admin",
}

func (r Role) String() string { return roleNames[r] }

// Actor is the caller of an operation, resolved once per request.
type Actor struct {
	Course string
	User   roster.User
	Role   Role
}

func NewActor(course string, usr roster.User) Actor {
	role := Student
	switch {
	case usr.IsAdmin:
		role = Admin
	case usr.IsStaff:
		role = Staff
	}
	return Actor{Course: course, User: usr, Role: role}
}

func AnonymousActor(course string) Actor {
	return Actor{Course: course, Role: Anonymous}
}

func (a Actor) IsAuthenticated() bool { return a.Role > Anonymous }
func (a Actor) IsStaff() bool         { return a.Role >= Staff }
func (a Actor) IsAdmin() bool         { return a.Role >= Admin }

type Operation string

const (
	OpRefreshState       Operation = "refresh_state"
	OpJoinSection        Operation = "join_section"
	OpLeaveSection       Operation = "leave_section"
	OpClaimSection       Operation = "claim_section"
	OpUnassignSection    Operation = "unassign_section"
	OpAddStudent         Operation = "add_student"
	OpRemoveStudent      Operation = "remove_student"
	OpFetchSection       Operation = "fetch_section"
	OpFetchUser          Operation = "fetch_user"
	OpStartSession       Operation = "start_session"
	OpSetAttendance      Operation = "set_attendance"
	OpExportAttendance   Operation = "export_attendance"
	OpUpdateDescription  Operation = "update_section_description"
	OpUpdateCallLink     Operation = "update_section_call_link"
	OpUpdateCode         Operation = "update_section_enrollment_code"
	OpUpdateLocation     Operation = "update_section_location"
	OpUpdateTime         Operation = "update_section_time"
	OpUpdateTags         Operation = "update_section_tags"
	OpUpdateCapacity     Operation = "update_section_capacity"
	OpUpdateSelfEnroll   Operation = "update_section_self_enroll"
	OpCreateSection      Operation = "create_section"
	OpDeleteSection      Operation = "delete_section"
	OpUpdateConfig       Operation = "update_config"
	OpExportRosters      Operation = "export_rosters"
	OpRemoveStudents     Operation = "remove_students"
	OpResetCourse        Operation = "reset_course"
	OpImportSections     Operation = "import_sections"
	OpImportEnrollment   Operation = "import_enrollment"
	OpDropCandidates     Operation = "get_drop_candidates"
	OpStudentSectionIDs  Operation = "get_student_section_ids"
	OpStudentAttendance  Operation = "get_student_attendance"
	OpRemindTutors       Operation = "remind_tutors_to_setup_call_links"
)

var minRoles = map[Operation]Role{
	OpRefreshState: Anonymous,

	OpJoinSection:  Student,
	OpLeaveSection: Student,

	OpClaimSection:      Staff,
	OpUnassignSection:   Staff,
	OpAddStudent:        Staff,
	OpRemoveStudent:     Staff,
	OpFetchSection:      Staff,
	OpFetchUser:         Staff,
	OpStartSession:      Staff,
	OpSetAttendance:     Staff,
	OpExportAttendance:  Staff,
	OpUpdateDescription: Staff,
	OpUpdateCallLink:    Staff,
	OpUpdateCode:        Staff,

	OpUpdateLocation:    Admin,
	OpUpdateTime:        Admin,
	OpUpdateTags:        Admin,
	OpUpdateCapacity:    Admin,
	OpUpdateSelfEnroll:  Admin,
	OpCreateSection:     Admin,
	OpDeleteSection:     Admin,
	OpUpdateConfig:      Admin,
	OpExportRosters:     Admin,
	OpRemoveStudents:    Admin,
	OpResetCourse:       Admin,
	OpImportSections:    Admin,
	OpImportEnrollment:  Admin,
	OpDropCandidates:    Admin,
	OpStudentSectionIDs: Admin,
	OpStudentAttendance: Admin,
	OpRemindTutors:      Admin,
}

// MinRole returns the least privileged role allowed to run op. Unknown operations require Admin.
func MinRole(op Operation) Role {
	if role, ok := minRoles[op]; ok {
		return role
	}
	return Admin
}

// Check fails with an Unauthorized failure when the actor's role is below the operation's minimum.
func Check(actor Actor, op Operation) error {
	need := MinRole(op)
	if actor.Role >= need {
		return nil
	}
	switch need {
	case Student:
		return core.NewFailure(core.FailureUnauthorized, "You must be logged in to perform this action.")
	case Staff:
		return core.NewFailure(core.FailureUnauthorized, "Only staff can perform this action")
	default:
		return core.NewFailure(core.FailureUnauthorized, "Only course admins can perform this action.")
	}
}
