package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound            = "not_found"
	CodeHasDependents       = "has_dependents"
	CodeMissingParameter    = "missing_parameter"
	CodeUnprocessableEntity = "unprocessable_entity"
	CodeDuplicateKey        = "duplicate_key"
	CodeValidationFailure   = "validation_failure"
	CodeInternal            = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Operational reports whether the error describes a condition the client
// caused and may see verbatim.
func (e *Error) Operational() bool {
	return e != nil && e.Code != CodeInternal && e.Status < http.StatusInternalServerError
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func HasDependents(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeHasDependents, fmt.Errorf(format, args...))
}

func MissingParameter(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeMissingParameter, fmt.Errorf(format, args...))
}

func Unprocessable(format string, args ...any) *Error {
	return New(http.StatusUnprocessableEntity, CodeUnprocessableEntity, fmt.Errorf(format, args...))
}

func DuplicateKey(err error) *Error {
	return New(http.StatusConflict, CodeDuplicateKey, err)
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidationFailure, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Wrap passes api errors through untouched and turns anything else into an
// Internal error with context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Internal(fmt.Errorf("%s: %w", msg, err))
}
