/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrCapacity      = errors.New("capacity")
	ErrState         = errors.New("invalid state")
	ErrAuthorization = errors.New("not authorized")
)

// Error carries a user-facing message and matches its kind with errors.Is.
type Error struct {
	kind error
	msg  string
}

// NewError returns an error of the given kind, one of the Err sentinels.
func NewError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func errorf(kind error, format string, args ...any) error {
	return NewError(kind, format, args...)
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind names the error class of err, or "internal" for anything the game
// did not produce.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	default:
		return "internal"
	}
}
