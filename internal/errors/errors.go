package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Codes. Callers branch on these with IsCode and HasCode.
const (
	ErrConfig            = "CONFIG"
	ErrRuntime           = "RUNTIME"
	ErrMalformedSnapshot = "MALFORMED_SNAPSHOT"
	ErrDuplicateName     = "DUPLICATE_NAME"
	ErrTickAborted       = "TICK_ABORTED"
	ErrRender            = "RENDER"
	ErrDeliver           = "DELIVER"
)

// Error is a coded error meant for people reading a terminal. It prints as:
//
//	✗ <message>
//
//	  <cause, if any>
//
//	  <suggestion, if any>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap attaches a message to err under ErrRuntime.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrRuntime,
		Message: message,
		Cause:   err,
	}
}

func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s\n", e.Message)
	for _, detail := range []string{e.causeText(), e.Suggestion} {
		if detail != "" {
			fmt.Fprintf(&b, "\n  %s\n", detail)
		}
	}
	return b.String()
}

func (e *Error) causeText() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var dsErr *Error
	if errors.As(err, &dsErr) {
		return dsErr.Code == code
	}
	return false
}

// HasCode reports whether any structured Error in the chain carries code.
// Unlike IsCode it keeps unwrapping past outer structured errors, so a
// MALFORMED_SNAPSHOT wrapped in a TICK_ABORTED still matches.
func HasCode(err error, code string) bool {
	for err != nil {
		var dsErr *Error
		if !errors.As(err, &dsErr) {
			return false
		}
		if dsErr.Code == code {
			return true
		}
		err = dsErr.Cause
	}
	return false
}

// Recoverable reports whether the engine may discard the current render cycle
// and resume from discovery instead of stopping.
func Recoverable(err error) bool {
	return HasCode(err, ErrMalformedSnapshot) ||
		HasCode(err, ErrTickAborted) ||
		HasCode(err, ErrDuplicateName)
}
