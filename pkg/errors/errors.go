package errors

import (
	"errors"
	"fmt"
)

// Exit codes returned to the invoking shell.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Error represents a typed run error that knows its process exit code.
type Error struct {
	Code     string
	Message  string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so that wrapped copies of the
// predefined errors satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, exitCode int, message string) *Error {
	return &Error{Code: code, ExitCode: exitCode, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, base *Error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return &Error{Code: base.Code, ExitCode: base.ExitCode, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidOutputDir = New("INVALID_OUTPUT_DIR", ExitUsage, "output directory is not a directory")
	ErrInvalidArgument  = New("INVALID_ARGUMENT", ExitUsage, "invalid argument")
	ErrConfiguration    = New("CONFIGURATION", ExitUsage, "invalid configuration")
	ErrDataAccess       = New("DATA_ACCESS", ExitFailure, "data store query failed")
	ErrExternalLookup   = New("EXTERNAL_LOOKUP", ExitFailure, "external lookup failed")
	ErrUpload           = New("UPLOAD", ExitFailure, "upload failed")
	ErrWrite            = New("WRITE", ExitFailure, "writing export failed")
	ErrPartialFailure   = New("PARTIAL_FAILURE", ExitFailure, "one or more course exports failed")
	ErrCacheMiss        = New("CACHE_MISS", ExitFailure, "cache miss")
	ErrInternal         = New("INTERNAL_ERROR", ExitFailure, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, err.Error())
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return FromError(err).ExitCode
}
