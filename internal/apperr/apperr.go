package apperr

import (
	"errors"
	"fmt"
)

// Code is the typed result of every operator-facing operation. No operation
// in this module returns a bare panic or untyped failure to its caller.
type Code string

const (
	CodeOK             Code = "ok"
	CodeValidation     Code = "validation_error"
	CodeNotFound       Code = "not_found"
	CodeNotEligible    Code = "not_eligible"
	CodeAlreadyInState Code = "already_in_state"
	CodeConflict       Code = "conflict"
	CodePersistence    Code = "persistence_error"
)

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code, so errors.Is(err, &Error{Code: CodeNotFound}) and the
// sentinel helpers below both work.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotEligible(format string, args ...any) *Error {
	return &Error{Code: CodeNotEligible, Msg: fmt.Sprintf(format, args...)}
}

func AlreadyInState(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyInState, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Msg: fmt.Sprintf(format, args...)}
}

func Persistence(msg string, cause error) *Error {
	return &Error{Code: CodePersistence, Msg: msg, Err: cause}
}

// CodeOf extracts the typed code from any error chain. Unknown errors are
// reported as persistence failures, the catch-all for store trouble.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodePersistence
}

func IsNotFound(err error) bool       { return CodeOf(err) == CodeNotFound }
func IsValidation(err error) bool     { return CodeOf(err) == CodeValidation }
func IsNotEligible(err error) bool    { return CodeOf(err) == CodeNotEligible }
func IsAlreadyInState(err error) bool { return CodeOf(err) == CodeAlreadyInState }
func IsConflict(err error) bool       { return CodeOf(err) == CodeConflict }
