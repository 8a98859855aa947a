package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different ways an album export can fail
type ErrorType string

const (
	ErrorTypeNavigationTimeout   ErrorType = "navigation_timeout"
	ErrorTypeControlNotFound     ErrorType = "control_not_found"
	ErrorTypeControlNotClickable ErrorType = "control_not_clickable"
	ErrorTypeExportTimeout       ErrorType = "export_timeout"
	ErrorTypeDownloadTimeout     ErrorType = "download_timeout"
	ErrorTypeUnexpected          ErrorType = "unexpected"
	ErrorTypeSession             ErrorType = "session"
	ErrorTypeInput               ErrorType = "input"
)

// Error carries the failure type together with the step and album it happened on
type Error struct {
	Type       ErrorType
	Step       string
	Identifier string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Step != "" {
		msg += fmt.Sprintf(" at %s", e.Step)
	}
	if e.Identifier != "" {
		msg += fmt.Sprintf(" (%s)", e.Identifier)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error wrapping cause
func New(errType ErrorType, step, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Step:    step,
		Message: message,
		Err:     cause,
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnexpected when
// err is not one of ours
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnexpected
}

// IsFatal reports whether err should stop the whole batch instead of just
// failing the current album
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeSession, ErrorTypeInput:
		return true
	default:
		return false
	}
}

// IsTimeout reports whether the failure was one of the bounded waits expiring
func IsTimeout(errType ErrorType) bool {
	switch errType {
	case ErrorTypeNavigationTimeout, ErrorTypeExportTimeout, ErrorTypeDownloadTimeout:
		return true
	default:
		return false
	}
}
