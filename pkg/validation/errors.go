package validation

import (
	"fmt"
	"strings"
)

// Error types reported in FieldError.Type.
const (
	ErrTypeMissing        = "missing"
	ErrTypeEnum           = "enum"
	ErrTypeStringTooShort = "string_too_short"
	ErrTypeStringType     = "string_type"
	ErrTypePattern        = "string_pattern_mismatch"
	ErrTypeValue          = "value_error"
	ErrTypeReadBody       = "body_read_error"
)

// Locations used as the first element of FieldError.Loc.
const (
	LocationBody   = "body"
	LocationQuery  = "query"
	LocationHeader = "header"
	LocationPath   = "path"
)

// FieldError describes one request shape problem. Its JSON form is one
// entry of a 422 "detail" list.
type FieldError struct {
	// Loc is the location of the offending value, such as ["query", "format"].
	Loc []string `json:"loc"`

	// Msg is a human-readable error description.
	Msg string `json:"msg"`

	// Type is a machine-readable error type.
	Type string `json:"type"`

	// Input is the rejected value, when there was one.
	Input any `json:"input,omitempty"`
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.Loc) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(e.Loc, "."), e.Msg)
	}
	return e.Msg
}

// Result contains the outcome of validation.
type Result struct {
	// Valid is true if validation passed.
	Valid bool `json:"valid"`

	// Errors contains validation errors (when Valid is false).
	Errors []*FieldError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result.
func (r *Result) AddError(err *FieldError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Detail returns the errors as the 422 "detail" list. It is never nil.
func (r *Result) Detail() []*FieldError {
	if r.Errors == nil {
		return []*FieldError{}
	}
	return r.Errors
}

// Error implements the error interface so a failed Result can travel as an
// error value.
func (r *Result) Error() string {
	switch len(r.Errors) {
	case 0:
		return "request validation failed"
	case 1:
		return r.Errors[0].Error()
	default:
		return fmt.Sprintf("%d validation errors; first: %s", len(r.Errors), r.Errors[0].Error())
	}
}

// NewMissingError creates an error for a required value that was not sent.
func NewMissingError(loc ...string) *FieldError {
	return &FieldError{
		Loc:  loc,
		Msg:  "Field required",
		Type: ErrTypeMissing,
	}
}
