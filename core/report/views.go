package report

import (
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
)

const anonName = "Anon Student"

type (
	UserView struct {
		ID      int    `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		IsStaff bool   `json:"isStaff"`
		IsAdmin bool   `json:"isAdmin"`
	}

	SectionView struct {
		ID                  int        `json:"id"`
		Type                string     `json:"type"`
		Description         string     `json:"description"`
		Capacity            int        `json:"capacity"`
		CanSelfEnroll       bool       `json:"canSelfEnroll"`
		NeedsEnrollmentCode bool       `json:"needsEnrollmentCode"`
		EnrollmentCode      string     `json:"enrollmentCode,omitempty"`
		Staff               *UserView  `json:"staff"`
		Students            []UserView `json:"students"`
		NumStudentsEnrolled int        `json:"numStudentsEnrolled"`
		Tags                []string   `json:"tags"`
		Location            string     `json:"location"`
		StartTime           int64      `json:"startTime"`
		EndTime             int64      `json:"endTime"`
		CallLink            string     `json:"callLink,omitempty"`
	}

	AttendanceView struct {
		SessionID        int       `json:"sessionId"`
		SectionID        int       `json:"sectionId,omitempty"`
		SessionStartTime int64     `json:"sessionStartTime,omitempty"`
		Status           string    `json:"status"`
		Student          *UserView `json:"student,omitempty"`
	}

	SessionView struct {
		ID          int              `json:"id"`
		SectionID   int              `json:"sectionId"`
		StartTime   int64            `json:"startTime"`
		Attendances []AttendanceView `json:"attendances"`
	}

	SectionDetail struct {
		SectionView
		Sessions []SessionView `json:"sessions"`
	}

	UserDetail struct {
		UserView
		Sections    []SectionView    `json:"sections"`
		Attendances []AttendanceView `json:"attendances"`
	}

	State struct {
		Course           string        `json:"course"`
		EnrolledSections []SectionView `json:"enrolledSections"`
		TaughtSections   []SectionView `json:"taughtSections"`
		Sections         []SectionView `json:"sections"`
		CurrentUser      *UserDetail   `json:"currentUser"`
		Config           policy.Config `json:"config"`
	}
)

// userView renders usr as seen by the viewer. Students only see themselves.
func userView(viewer access.Actor, usr roster.User) UserView {
	if !viewer.IsStaff() && viewer.User.ID != usr.ID {
		return UserView{Name: anonName}
	}
	return UserView{
		ID:      usr.ID,
		Email:   usr.Email,
		Name:    usr.Name,
		IsStaff: usr.IsStaff,
		IsAdmin: usr.IsAdmin,
	}
}

// staffView shows tutors to everyone.
func staffView(usr roster.User) *UserView {
	return &UserView{
		ID:      usr.ID,
		Email:   usr.Email,
		Name:    usr.Name,
		IsStaff: usr.IsStaff,
		IsAdmin: usr.IsAdmin,
	}
}

func sectionView(viewer access.Actor, sec roster.Section, staff *roster.User, students []roster.User) SectionView {
	view := SectionView{
		ID:                  sec.ID,
		Type:                sec.Type.String(),
		Description:         sec.Description,
		Capacity:            sec.Capacity,
		CanSelfEnroll:       sec.CanSelfEnroll,
		NeedsEnrollmentCode: sec.RequiresCode(),
		Students:            make([]UserView, 0, len(students)),
		NumStudentsEnrolled: len(students),
		Tags:                sec.Tags,
		Location:            sec.Location,
		StartTime:           sec.StartTime.Unix(),
		EndTime:             sec.EndTime.Unix(),
	}
	if view.Tags == nil {
		view.Tags = []string{}
	}
	if staff != nil {
		view.Staff = staffView(*staff)
	}

	enrolled := false
	for _, usr := range students {
		if usr.ID == viewer.User.ID {
			enrolled = true
		}
		view.Students = append(view.Students, userView(viewer, usr))
	}
	if viewer.IsStaff() {
		view.EnrollmentCode = sec.EnrollmentCode
	}
	if viewer.IsStaff() || enrolled {
		view.CallLink = sec.CallLink
	}
	return view
}
