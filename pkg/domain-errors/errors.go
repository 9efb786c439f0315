// Package domainerrors carries coded errors across layer boundaries.
//
// Services attach a Code so transport can translate failures without string
// matching, and callers can branch with HasCode. Stores return sentinel
// errors (pkg/platform/sentinel); services wrap them here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers and for HTTP translation.
type Code string

const (
	CodeInvalidInput  Code = "invalid_input"
	CodeBadRequest    Code = "bad_request"
	CodeNotFound      Code = "not_found"
	CodeNotAuthorized Code = "not_authorized"
	CodeAlreadyExists Code = "already_exists"
	CodeDuplicate     Code = "duplicate_action"
	CodeExpired       Code = "expired"
	CodeNotYetOpen    Code = "not_yet_eligible"
	CodeSuspended     Code = "system_suspended"
	CodeConflict      Code = "conflict"
	CodeInternal      Code = "internal"
)

// Error is the concrete coded error. Use New or Wrap to construct.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code on err, or CodeInternal when uncoded.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeAlreadyExists, CodeDuplicate, CodeConflict:
		return http.StatusConflict
	case CodeExpired, CodeNotYetOpen:
		return http.StatusUnprocessableEntity
	case CodeSuspended:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
