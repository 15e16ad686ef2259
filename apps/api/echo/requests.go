package echoapi

import (
	"time"
)

type (
	SectionRequest struct {
		SectionID int `json:"sectionId" validate:"required"`
	}

	JoinRequest struct {
		SectionID int    `json:"sectionId" validate:"required"`
		Code      string `json:"code"`
	}

	StudentRequest struct {
		SectionID int    `json:"sectionId" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
	}

	// StudentsRequest carries a pasted list of emails separated by commas or whitespace.
	StudentsRequest struct {
		SectionID int    `json:"sectionId" validate:"required"`
		Emails    string `json:"emails" validate:"required,emails"`
	}

	EmailsRequest struct {
		Emails string `json:"emails" validate:"required,emails"`
	}

	UserRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	StudentAttendanceRequest struct {
		Email string `json:"email" validate:"required,email"`
		Type  string `json:"type" validate:"required"`
	}

	StartSessionRequest struct {
		SectionID int   `json:"sectionId" validate:"required"`
		StartTime int64 `json:"startTime" validate:"required"`
	}

	SetAttendanceRequest struct {
		SessionID int      `json:"sessionId" validate:"required"`
		Students  []string `json:"students" validate:"required,min=1,dive,required"`
		Status    string   `json:"status" validate:"omitempty,oneof=present excused absent"`
	}

	DescriptionRequest struct {
		SectionID   int    `json:"sectionId" validate:"required"`
		Description string `json:"description"`
	}

	CallLinkRequest struct {
		SectionID int    `json:"sectionId" validate:"required"`
		CallLink  string `json:"callLink" validate:"omitempty,url"`
	}

	EnrollmentCodeRequest struct {
		SectionID      int    `json:"sectionId" validate:"required"`
		EnrollmentCode string `json:"enrollmentCode"`
	}

	LocationRequest struct {
		SectionID int    `json:"sectionId" validate:"required"`
		Location  string `json:"location"`
	}

	TimeRequest struct {
		SectionID int   `json:"sectionId" validate:"required"`
		StartTime int64 `json:"startTime" validate:"required"`
		EndTime   int64 `json:"endTime" validate:"required,gtfield=StartTime"`
	}

	TagsRequest struct {
		SectionID int      `json:"sectionId" validate:"required"`
		Tags      []string `json:"tags"`
	}

	CapacityRequest struct {
		SectionID int  `json:"sectionId" validate:"required"`
		Capacity  *int `json:"capacity" validate:"required,gte=0"`
	}

	SelfEnrollRequest struct {
		SectionID     int   `json:"sectionId" validate:"required"`
		CanSelfEnroll *bool `json:"canSelfEnroll" validate:"required"`
	}

	ConfigRequest struct {
		Toggles map[string]bool `json:"toggles"`
		Message *string         `json:"message"`
	}

	ImportRequest struct {
		URL string `json:"url" validate:"required,url"`
	}
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
