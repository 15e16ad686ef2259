package policy

import (
	"sort"

	"github.com/trezcool/sections/core"
)

// Audience is who a toggle applies to.
type Audience string

const (
	Students Audience = "students"
	Tutors   Audience = "tutors"
)

// Action is what a toggle allows.
type Action string

const (
	Join     Action = "join"
	Change   Action = "change"
	Reassign Action = "reassign"
)

// Config holds the per-course policy toggles. All toggles default to allowed.
type Config struct {
	Course string `json:"course"`

	CanStudentsJoinLab      bool `json:"canStudentsJoinLab"`
	CanStudentsJoinDisc     bool `json:"canStudentsJoinDisc"`
	CanStudentsJoinTutoring bool `json:"canStudentsJoinTutoring"`

	CanStudentsChangeLab      bool `json:"canStudentsChangeLab"`
	CanStudentsChangeDisc     bool `json:"canStudentsChangeDisc"`
	CanStudentsChangeTutoring bool `json:"canStudentsChangeTutoring"`

	CanTutorsChangeLab      bool `json:"canTutorsChangeLab"`
	CanTutorsChangeDisc     bool `json:"canTutorsChangeDisc"`
	CanTutorsChangeTutoring bool `json:"canTutorsChangeTutoring"`

	CanTutorsReassignLab      bool `json:"canTutorsReassignLab"`
	CanTutorsReassignDisc     bool `json:"canTutorsReassignDisc"`
	CanTutorsReassignTutoring bool `json:"canTutorsReassignTutoring"`

	Message string `json:"message"`
}

// DefaultConfig is the default-allow config of a course.
func DefaultConfig(course string) Config {
	cfg := Config{Course: course}
	for _, ptr := range cfg.toggles() {
		*ptr = true
	}
	return cfg
}

// toggles is the single lookup table from toggle key to its field.
func (cfg *Config) toggles() map[string]*bool {
	return map[string]*bool{
		"can_students_join_lab":      &cfg.CanStudentsJoinLab,
		"can_students_join_disc":     &cfg.CanStudentsJoinDisc,
		"can_students_join_tutoring": &cfg.CanStudentsJoinTutoring,

		"can_students_change_lab":      &cfg.CanStudentsChangeLab,
		"can_students_change_disc":     &cfg.CanStudentsChangeDisc,
		"can_students_change_tutoring": &cfg.CanStudentsChangeTutoring,

		"can_tutors_change_lab":      &cfg.CanTutorsChangeLab,
		"can_tutors_change_disc":     &cfg.CanTutorsChangeDisc,
		"can_tutors_change_tutoring": &cfg.CanTutorsChangeTutoring,

		"can_tutors_reassign_lab":      &cfg.CanTutorsReassignLab,
		"can_tutors_reassign_disc":     &cfg.CanTutorsReassignDisc,
		"can_tutors_reassign_tutoring": &cfg.CanTutorsReassignTutoring,
	}
}

// Key builds the toggle key for an audience, action and section type.
// Custom section types have no toggle.
func Key(aud Audience, act Action, typ core.SectionType) (string, bool) {
	suffix, ok := typ.PolicyKey()
	if !ok {
		return "", false
	}
	return "can_" + string(aud) + "_" + string(act) + "_" + suffix, true
}

// Allowed reports whether the audience may perform the action on sections of the given type.
// Combinations without a toggle are allowed.
func (cfg Config) Allowed(aud Audience, act Action, typ core.SectionType) bool {
	key, ok := Key(aud, act, typ)
	if !ok {
		return true
	}
	if ptr, ok := cfg.toggles()[key]; ok {
		return *ptr
	}
	return true
}

// Toggles returns a copy of every toggle keyed by name.
func (cfg Config) Toggles() map[string]bool {
	out := make(map[string]bool, 12)
	for key, ptr := range cfg.toggles() {
		out[key] = *ptr
	}
	return out
}

// ToggleKeys returns all toggle names, sorted.
func ToggleKeys() []string {
	var cfg Config
	keys := make([]string, 0, 12)
	for key := range cfg.toggles() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
