package core

import "strings"

type sectionKind int

const (
	kindCustom sectionKind = iota
	kindLab
	kindDiscussion
	kindTutoring
)

// SectionType is the label of a section: one of the built-in Lab, Discussion and Tutoring,
// or any custom label an admin chooses.
type SectionType struct {
	kind  sectionKind
	label string
}

var (
	Lab        = SectionType{kind: kindLab, label: "Lab"}
	Discussion = SectionType{kind: kindDiscussion, label: "Discussion"}
	Tutoring   = SectionType{kind: kindTutoring, label: "Tutoring"}

	builtinTypes = []SectionType{Lab, Discussion, Tutoring}
)

// ParseSectionType maps a label to its SectionType. Built-in labels match case-insensitively.
func ParseSectionType(label string) SectionType {
	label = CleanString(label)
	for _, typ := range builtinTypes {
		if strings.EqualFold(typ.label, label) {
			return typ
		}
	}
	return SectionType{kind: kindCustom, label: label}
}

func (t SectionType) String() string { return t.label }

func (t SectionType) IsCustom() bool { return t.kind == kindCustom }

func (t SectionType) IsZero() bool { return t.label == "" }

// PolicyKey is the suffix used by the policy toggles of this type; custom types have none.
func (t SectionType) PolicyKey() (string, bool) {
	switch t.kind {
	case kindLab:
		return "lab", true
	case kindDiscussion:
		return "disc", true
	case kindTutoring:
		return "tutoring", true
	}
	return "", false
}

// Noun is the singular human name of the type used in messages ("lab", "tutoring section").
func (t SectionType) Noun() string {
	switch t.kind {
	case kindLab:
		return "lab"
	case kindDiscussion:
		return "discussion"
	case kindTutoring:
		return "tutoring section"
	}
	return strings.ToLower(t.label) + " section"
}

// Plural is Noun in plural form.
func (t SectionType) Plural() string {
	return t.Noun() + "s"
}

// Same reports whether two types share a label; only the label matters for the one-per-type rule.
func (t SectionType) Same(other SectionType) bool {
	return t.label == other.label
}

func (t SectionType) MarshalText() ([]byte, error) {
	return []byte(t.label), nil
}

func (t *SectionType) UnmarshalText(b []byte) error {
	*t = ParseSectionType(string(b))
	return nil
}
