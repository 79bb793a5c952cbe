package models

import "fmt"

// MalformedRecordError reports a .dly line that could not be decoded.
// Decoding of that line is aborted; whether the rest of the input is
// processed is up to the caller.
type MalformedRecordError struct {
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed record: %s", e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("malformed record: field %s: %s", e.Field, e.Reason)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

// IsTransient returns false as a malformed line never decodes on retry
func (e *MalformedRecordError) IsTransient() bool {
	return false
}

// InvalidFilterError reports an unknown column or operator, or a filter
// value that does not fit the column type
type InvalidFilterError struct {
	Column   string
	Operator string
	Message  string
}

func (e *InvalidFilterError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("invalid filter %s/%s: %s", e.Column, e.Operator, e.Message)
	}
	return fmt.Sprintf("invalid filter %s: %s", e.Column, e.Message)
}

// IsTransient returns false
func (e *InvalidFilterError) IsTransient() bool {
	return false
}

// InterpolationError reports a group without a single valid value to
// interpolate from
type InterpolationError struct {
	Group   string
	Message string
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("interpolation failed for group %s: %s", e.Group, e.Message)
}

// IsTransient returns false
func (e *InterpolationError) IsTransient() bool {
	return false
}

// ValidationError represents an invalid argument or data value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient returns false
func (e *NotFoundError) IsTransient() bool {
	return false
}
