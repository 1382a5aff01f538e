// Package apperr implements the typed error taxonomy from spec §7. Component
// boundaries wrap upstream errors with one of these types, preserving the
// original message; the Request Edge is the sole place that maps them to
// HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	CodeInput           Code = "input_error"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeRateLimited     Code = "rate_limited"
	CodeUpstreamFailure Code = "upstream_failure"
	CodeStore           Code = "store_error"
	CodeTimeout         Code = "timeout_error"
)

// Error is the typed wrapper carried across every component boundary.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Input wraps a missing/invalid request parameter error. Never retried.
func Input(format string, args ...any) *Error { return newErr(CodeInput, format, args...) }

// NotFound wraps an absent-entity error.
func NotFound(format string, args ...any) *Error { return newErr(CodeNotFound, format, args...) }

// Unauthorized wraps a missing/invalid credential error.
func Unauthorized(format string, args ...any) *Error { return newErr(CodeUnauthorized, format, args...) }

// RateLimited wraps an upstream 429.
func RateLimited(format string, args ...any) *Error { return newErr(CodeRateLimited, format, args...) }

// Upstream wraps a non-retryable adapter/provider failure.
func Upstream(cause error, format string, args ...any) *Error {
	e := newErr(CodeUpstreamFailure, format, args...)
	e.Cause = cause
	return e
}

// Store subkinds, per §4.1 "a machine-readable subkind".
const (
	StoreConflict = "conflict"
	StoreNotFound = "not_found"
	StoreIO       = "io"
)

// Store wraps a persistence failure.
func Store(cause error, subkind string, format string, args ...any) *Error {
	e := newErr(CodeStore, "[%s] %s", subkind, fmt.Sprintf(format, args...))
	e.Cause = cause
	return e
}

// Timeout wraps a TTS or network timeout.
func Timeout(format string, args ...any) *Error { return newErr(CodeTimeout, format, args...) }

// As is a thin convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
