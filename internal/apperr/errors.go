// Package apperr defines the typed application errors returned by the auth core.
// The HTTP layer maps a Code to a status; the core never depends on that mapping.
package apperr

import "errors"

// Code is a machine-readable error category.
type Code string

const (
	CodeConflict        Code = "conflict"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodeInvalidCode     Code = "invalid_code"
	CodeAlreadyConsumed Code = "already_consumed"
	CodeExpired         Code = "expired"
	CodeInvalidToken    Code = "invalid_token"
	CodeValidation      Code = "validation_failed"
	CodeInternal        Code = "internal"
)

// Category groups OTP failures under validation_failed. Other codes are their own category.
func (c Code) Category() Code {
	switch c {
	case CodeInvalidCode, CodeAlreadyConsumed, CodeExpired:
		return CodeValidation
	}
	return c
}

// Error is an application error with a code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, apperr.ErrExpired) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Internal wraps an unexpected failure (store unavailable, etc).
func Internal(cause error) *Error {
	return Wrap(CodeInternal, "internal error", cause)
}

// Validation reports malformed input detected at the boundary.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// CodeOf returns the Code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns a client-safe message. Internal failures never expose their cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal server error"
}

var (
	ErrInvalidCode     = New(CodeInvalidCode, "invalid OTP code")
	ErrAlreadyConsumed = New(CodeAlreadyConsumed, "OTP code has already been used")
	ErrExpired         = New(CodeExpired, "OTP code has expired")
	ErrInvalidToken    = New(CodeInvalidToken, "invalid token")
	ErrTokenExpired    = New(CodeExpired, "token has expired")
	ErrUnauthorized    = New(CodeUnauthorized, "invalid phone number or password")
)
