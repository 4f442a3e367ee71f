package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status and a stable machine-readable code for a
// failure that reaches the API edge.
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

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func NotFound(code string, err error) *Error   { return New(http.StatusNotFound, code, err) }
func Internal(err error) *Error                { return New(http.StatusInternalServerError, "internal", err) }

// From extracts an *Error from err's chain, falling back to a 500.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
