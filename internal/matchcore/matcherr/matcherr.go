// Package matcherr defines the semantic error classes matchcore components
// propagate: one shared Error type carrying a class bucket and an inner
// cause, rather than one Go type per class.
package matcherr

import (
	"errors"
	"fmt"
	"time"
)

// Class is a semantic error bucket. Classes are buckets, not Go types, so
// every class shares the single Error type below.
type Class string

const (
	ClassValidation  Class = "validation"
	ClassNotFound    Class = "not_found"
	ClassTransient   Class = "transient"
	ClassRateLimited Class = "rate_limited"
	ClassCircuitOpen Class = "circuit_open"
	ClassCancelled   Class = "cancelled"
	ClassInternal    Class = "internal"
)

// Error is the single typed error every matchcore component returns.
type Error struct {
	Class      Class
	Err        error
	Retryable  bool
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// ClassOf extracts the Class of err, returning ClassInternal when err is not
// a *Error (an unclassified error is treated as an invariant violation).
func ClassOf(err error) Class {
	var me *Error
	if errors.As(err, &me) {
		return me.Class
	}
	if err == nil {
		return ""
	}
	return ClassInternal
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

func newf(class Class, retryable bool, format string, args ...any) *Error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...), Retryable: retryable}
}

// Validation builds a non-retryable ClassValidation error.
func Validation(format string, args ...any) *Error {
	return newf(ClassValidation, false, format, args...)
}

// NotFound builds a non-retryable ClassNotFound error.
func NotFound(format string, args ...any) *Error {
	return newf(ClassNotFound, false, format, args...)
}

// Transient builds a retryable ClassTransient error.
func Transient(err error) *Error {
	return &Error{Class: ClassTransient, Err: err, Retryable: true}
}

// RateLimited builds a retryable ClassRateLimited error carrying the
// upstream-advertised retry-after delay, if any.
func RateLimited(err error, retryAfter time.Duration) *Error {
	return &Error{Class: ClassRateLimited, Err: err, Retryable: true, RetryAfter: retryAfter}
}

// CircuitOpen builds a ClassCircuitOpen error carrying the breaker's
// remaining cooldown.
func CircuitOpen(name string, remaining time.Duration) *Error {
	return &Error{
		Class:      ClassCircuitOpen,
		Err:        fmt.Errorf("circuit %q is open, retry after %s", name, remaining),
		Retryable:  true,
		RetryAfter: remaining,
	}
}

// Cancelled builds a ClassCancelled error. Retryable reflects whether
// cancellation was due to a visibility timeout (retryable) versus a
// client-initiated deadline (terminal).
func Cancelled(err error, retryable bool) *Error {
	return &Error{Class: ClassCancelled, Err: err, Retryable: retryable}
}

// Internal builds a non-retryable ClassInternal error for invariant
// violations and recovered panics.
func Internal(err error) *Error {
	return &Error{Class: ClassInternal, Err: err, Retryable: false}
}
