package roster

import (
	"strings"
	"time"

	"github.com/trezcool/sections/core"
)

type User struct {
	ID      int
	Course  string
	Email   string
	Name    string
	IsStaff bool
	IsAdmin bool
}

type Section struct {
	ID            int
	Course        string
	Type          core.SectionType
	Description   string
	Capacity      int
	CanSelfEnroll bool
	// EnrollmentCode is empty when the section is open to anyone.
	EnrollmentCode string
	// StaffID is 0 when no tutor is assigned.
	StaffID   int
	Tags      []string
	Location  string
	StartTime time.Time
	EndTime   time.Time
	CallLink  string
}

func (s Section) HasStaff() bool { return s.StaffID != 0 }

func (s Section) RequiresCode() bool { return s.EnrollmentCode != "" }

// TagString joins the tags the way they are stored.
func (s Section) TagString() string {
	return JoinTags(s.Tags)
}

// JoinTags joins tags into their stored form, keeping order.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags parses the stored tag string, keeping order and dropping blanks.
func SplitTags(s string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

type Session struct {
	ID        int
	Course    string
	SectionID int
	StartTime time.Time
}

type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Excused AttendanceStatus = "excused"
	Absent  AttendanceStatus = "absent"
)

// ParseAttendanceStatus parses a status; an empty string means no status (clear).
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch st := AttendanceStatus(core.CleanString(s, true /* lower */)); st {
	case "", Present, Excused, Absent:
		return st, nil
	}
	return "", core.NewFailure(core.FailureInvalid, "Unknown attendance status: %s", s)
}

// Attended reports whether the status counts as attended.
func (st AttendanceStatus) Attended() bool {
	return st == Present || st == Excused
}

type Attendance struct {
	ID        int
	Course    string
	SessionID int
	StudentID int
	Status    AttendanceStatus
}
