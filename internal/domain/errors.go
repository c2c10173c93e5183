package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports malformed input. Fields maps the offending field
// (json name) to a human readable reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NotFoundError is returned when a referenced order, product or item does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id=%d", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// InvalidStateError is returned when the current state of a resource forbids the
// requested operation, e.g. mutating the items of a completed order.
type InvalidStateError struct {
	Resource string
	ID       int64
	State    string
	Reason   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d is %s: %s", e.Resource, e.ID, e.State, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool {
	_, ok := target.(*InvalidStateError)
	return ok
}

// ConflictError wraps store level constraint violations.
type ConflictError struct {
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func NewNotFoundError(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewInvalidStateError(resource string, id int64, state, reason string) error {
	return &InvalidStateError{Resource: resource, ID: id, State: state, Reason: reason}
}

func NewConflictError(reason string, err error) error {
	return &ConflictError{Reason: reason, Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidStateError(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
