package invoice

import "fmt"

// Error codes reported for invalid rows
const (
	ErrCodeMissingField = "MISSING_FIELD"
	ErrCodeInvalidField = "INVALID_FIELD"
)

// MissingFieldError is returned when a row lacks a required field.
type MissingFieldError struct {
	Field Field
	Row   int
}

func (e *MissingFieldError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: missing required field %s", e.Row, e.Field)
	}
	return fmt.Sprintf("missing required field %s", e.Field)
}

// Code returns the error code
func (e *MissingFieldError) Code() string {
	return ErrCodeMissingField
}

// InvalidFieldError is returned when a field is present but cannot be parsed.
type InvalidFieldError struct {
	Field Field
	Row   int
	Value string
	Cause error
}

func (e *InvalidFieldError) Error() string {
	msg := fmt.Sprintf("invalid value %q for field %s", e.Value, e.Field)
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Code returns the error code
func (e *InvalidFieldError) Code() string {
	return ErrCodeInvalidField
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Cause
}
