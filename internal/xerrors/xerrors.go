// Package xerrors implements the three-kind error taxonomy of the control
// plane: NotFound, BadRequest, and InternalError. The Persistence Gateway
// (internal/db) returns (or wraps) one of these instead of raw sentinel
// strings; other packages return plain wrapped errors. It mirrors the
// teacher's internal/errors package but classifying by operational outcome
// (what the caller, or the HTTP layer, should do) rather than by protocol
// layer.
package xerrors

import (
	stdErrors "errors"
	"fmt"
)

// kindMarker is implemented by all three error kinds so classification via
// errors.As does not require type-switching on every constructor.
type kindMarker interface {
	error
	isKind()
}

// NotFoundError indicates a row or in-memory entity does not exist.
type NotFoundError struct {
	Op  string
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("not found: %s", e.Op)
	}
	return fmt.Sprintf("not found: %s: %v", e.Op, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }
func (e *NotFoundError) isKind()       {}

// BadRequestError indicates a validation failure on caller-supplied input.
type BadRequestError struct {
	Op  string
	Msg string
	Err error
}

func (e *BadRequestError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("bad request: %s: %s", e.Op, e.Msg)
	}
	if e.Err == nil {
		return fmt.Sprintf("bad request: %s", e.Op)
	}
	return fmt.Sprintf("bad request: %s: %v", e.Op, e.Err)
}
func (e *BadRequestError) Unwrap() error { return e.Err }
func (e *BadRequestError) isKind()       {}

// InternalError indicates an unexpected failure: never surfaced to a caller
// as anything more specific than "something went wrong", always logged.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("internal error: %s", e.Op)
	}
	return fmt.Sprintf("internal error: %s: %v", e.Op, e.Err)
}
func (e *InternalError) Unwrap() error { return e.Err }
func (e *InternalError) isKind()       {}

// Constructors. Callers should keep wrapping with fmt.Errorf("...: %w", err)
// as context accumulates.
func NewNotFound(op string, cause error) error { return &NotFoundError{Op: op, Err: cause} }
func NewBadRequest(op, msg string) error       { return &BadRequestError{Op: op, Msg: msg} }
func NewInternal(op string, cause error) error { return &InternalError{Op: op, Err: cause} }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return stdErrors.As(err, &e)
}

// IsBadRequest reports whether err is, or wraps, a BadRequestError.
func IsBadRequest(err error) bool {
	var e *BadRequestError
	return stdErrors.As(err, &e)
}

// IsInternal reports whether err is, or wraps, an InternalError.
func IsInternal(err error) bool {
	var e *InternalError
	return stdErrors.As(err, &e)
}

// HTTPStatus maps an error of one of the three kinds to a status code.
// Unclassified errors map to 500, matching "never abort, always surface as
// 500" from the error-handling design.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case IsNotFound(err):
		return 404
	case IsBadRequest(err):
		return 400
	default:
		return 500
	}
}

// Compile-time checks that each of the three error kinds implements
// kindMarker.
var _ kindMarker = (*NotFoundError)(nil)
var _ kindMarker = (*BadRequestError)(nil)
var _ kindMarker = (*InternalError)(nil)
