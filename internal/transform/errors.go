package transform

import (
	"errors"
	"fmt"
)

// Rejection reasons for ValidationError.
const (
	// ReasonMalformed indicates undecodable JSON or an unparseable timestamp.
	ReasonMalformed = "malformed"

	// ReasonMissingField indicates a required field is absent or empty.
	ReasonMissingField = "missing_field"

	// ReasonOutOfRange indicates a value outside its physically plausible
	// range (NaN, Inf, negative duration).
	ReasonOutOfRange = "out_of_range"
)

// ErrUnknownCategory indicates a topic that maps to no message family.
var ErrUnknownCategory = errors.New("transform: unknown message category")

// ValidationError describes why a message was rejected.
//
// The reason is a stable token suitable for counting and log filtering;
// Detail carries the human-readable specifics.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Detail)
}

// malformed creates a ValidationError with the malformed reason.
func malformed(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: ReasonMalformed, Detail: fmt.Sprintf(format, args...)}
}

// missingField creates a ValidationError for an absent required field.
func missingField(field string) *ValidationError {
	return &ValidationError{Reason: ReasonMissingField, Detail: "missing required field: " + field}
}

// outOfRange creates a ValidationError with the out_of_range reason.
func outOfRange(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: ReasonOutOfRange, Detail: fmt.Sprintf(format, args...)}
}
