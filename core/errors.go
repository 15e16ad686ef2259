package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// FailureKind classifies a Failure.
type FailureKind int

const (
	FailurePolicy FailureKind = iota + 1
	FailureCapacity
	FailureInvalidCode
	FailureNotFound
	FailureDuplicate
	FailureUnauthorized
	FailureUnknownStudent
	FailureInvalid
	FailureImport
)

var failureKindNames = map[FailureKind]string{
	FailurePolicy:         "policy",
	FailureCapacity:       "capacity",
	FailureInvalidCode:    "invalid_code",
	FailureNotFound:       "not_found",
	FailureDuplicate:      "duplicate",
	FailureUnauthorized:   "unauthorized",
	FailureUnknownStudent: "unknown_student",
	FailureInvalid:        "invalid",
	FailureImport:         "import",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Failure is a business-rule violation with a message meant for the end user.
// It is never a crash: the API turns it into a {success: false} response.
type Failure struct {
	Kind    FailureKind
	Message string
}

func NewFailure(kind FailureKind, format string, args ...interface{}) error {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	return &Failure{Kind: kind, Message: format}
}

func (f Failure) Error() string {
	return f.Message
}

// AsFailure returns the Failure at the root of err, if any.
func AsFailure(err error) (*Failure, bool) {
	f, ok := errors.Cause(err).(*Failure)
	return f, ok
}

// IsFailure reports whether err is a Failure of one of the given kinds (any kind when none given).
func IsFailure(err error, kinds ...FailureKind) bool {
	f, ok := AsFailure(err)
	if !ok {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if f.Kind == k {
			return true
		}
	}
	return false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
