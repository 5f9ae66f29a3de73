package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrAmbiguousResult = errors.New("filter matched more than one row")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal error")
)

// FieldError carries which field or referenced id made a request invalid,
// e.g. a room id that resolved to nothing during content creation.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NotFoundField promotes an absent referenced entity into a caller-visible error.
func NotFoundField(field string, value any) error {
	return &FieldError{Field: field, Value: value, Err: ErrNotFound}
}

// MissingField signals a required field that was not supplied.
func MissingField(field string) error {
	return &FieldError{Field: field, Err: ErrInvalidInput}
}
