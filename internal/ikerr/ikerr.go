// Package ikerr implements the category-tagged error model shared by every
// engineering-hotspot package: terminal, input, textbuffer, scrollback,
// render, provider adapters, httpengine, agent, repl, and session.
package ikerr

import (
	"fmt"
	"runtime"
)

// Category classifies a failure for retry policy and user presentation.
type Category string

const (
	InvalidArg         Category = "invalid_arg"
	OutOfRange         Category = "out_of_range"
	IO                 Category = "io"
	Parse              Category = "parse"
	DbConnect          Category = "db_connect"
	DbMigrate          Category = "db_migrate"
	OutOfMemory        Category = "out_of_memory"
	MissingCredentials Category = "missing_credentials"
	NotFound           Category = "not_found"
	Internal           Category = "internal"

	// Categories used by provider adapters and the HTTP engine (§4.12, §7).
	Auth      Category = "auth"
	RateLimit Category = "rate_limit"
	Server    Category = "server"
	Timeout   Category = "timeout"
	Network   Category = "network"
)

// String returns the category's canonical display string.
func (c Category) String() string {
	return string(c)
}

// Retryable reports whether the category represents a transient failure
// that the caller may reattempt (§7).
func (c Category) Retryable() bool {
	switch c {
	case RateLimit, Server, Timeout, Network:
		return true
	default:
		return false
	}
}

// Error is the category-tagged error carried by every Result[T].
type Error struct {
	Cat        Category
	Message    string
	SourceFile string
	SourceLine int
	Err        error // wrapped cause, if any
}

// New constructs an Error, capturing the call site.
func New(cat Category, format string, args ...any) *Error {
	return wrap(nil, cat, format, args...)
}

// Wrap constructs an Error around an existing cause, capturing the call site.
func Wrap(cause error, cat Category, format string, args ...any) *Error {
	return wrap(cause, cat, format, args...)
}

func wrap(cause error, cat Category, format string, args ...any) *Error {
	file, line := "", 0
	if _, f, l, ok := runtime.Caller(2); ok {
		file, line = f, l
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{
		Cat:        cat,
		Message:    msg,
		SourceFile: file,
		SourceLine: line,
		Err:        cause,
	}
}

// Error implements the error interface. An empty formatted message falls
// back to the category's canonical string (§3).
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Cat.String()
	}
	if e.SourceFile != "" {
		return fmt.Sprintf("%s: %s (%s:%d)", e.Cat, msg, e.SourceFile, e.SourceLine)
	}
	return fmt.Sprintf("%s: %s", e.Cat, msg)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf extracts the Category of an error if it is (or wraps) an
// *Error. An empty formatted message on a directly-constructed Error still
// yields its canonical category string via Error(), matching §3's
// "error_category() of a constructed error whose formatted message is empty
// yields the category's canonical string" rule.
func CategoryOf(err error) Category {
	var e *Error
	if asError(err, &e) {
		return e.Cat
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Result is the value-or-error sum type used throughout the core packages.
// It mirrors spec §3's Result<T>: either a value of T, or an Error.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok constructs a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err constructs a failed Result.
func Err[T any](e *Error) Result[T] {
	return Result[T]{err: e}
}

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the held value and error. Callers follow the TRY pattern:
//
//	v, err := result.Unwrap()
//	if err != nil {
//	    return ikerr.Err[Out](err)
//	}
func (r Result[T]) Unwrap() (T, *Error) {
	return r.value, r.err
}

// Must panics if the Result holds an error; reserved for the fatal
// out-of-memory path described in §7 ("On fatal OOM: panic(), explicit,
// not silent corruption").
func (r Result[T]) Must() T {
	if r.err != nil {
		panic(r.err)
	}
	return r.value
}
