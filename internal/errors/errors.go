package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for common cases
var (
	// ErrTransient indicates a temporary error that should be retried
	ErrTransient = errors.New("transient error")

	// ErrPermanent indicates a permanent error that should not be retried
	ErrPermanent = errors.New("permanent error")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("timeout")
)

// TransientError wraps an error to mark it as transient (retryable)
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent (not retryable)
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// ReportNotFoundError indicates a report file disappeared between discovery
// and processing. The task should not be retried; the watcher will re-enqueue
// the file if it reappears.
type ReportNotFoundError struct {
	Path  string
	Cause error
}

func (e *ReportNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("report not found: %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("report not found: %s", e.Path)
}

func (e *ReportNotFoundError) Unwrap() error {
	return e.Cause
}

// NewReportNotFound creates a new report-not-found error
func NewReportNotFound(path string, err error) error {
	return &ReportNotFoundError{Path: path, Cause: err}
}

// IsReportNotFound checks if an error is a ReportNotFoundError using errors.As
func IsReportNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFoundErr *ReportNotFoundError
	return errors.As(err, &notFoundErr)
}

// IsTransient checks if an error is transient using errors.As
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check if explicitly marked as transient
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	// Check if explicitly marked as permanent
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	var notFoundErr *ReportNotFoundError
	if errors.As(err, &notFoundErr) {
		return false
	}

	// Check for known sentinel errors
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidInput) {
		return false
	}

	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Default to non-transient for safety (don't retry unknown errors)
	return false
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// ErrorClass is the result of single-pass error classification
type ErrorClass int

const (
	// ErrorClassUnknown means the error could not be classified
	ErrorClassUnknown ErrorClass = iota
	// ErrorClassTransient means the error should be retried
	ErrorClassTransient
	// ErrorClassPermanent means the error should not be retried
	ErrorClassPermanent
	// ErrorClassReportNotFound means the report file vanished and needs cleanup, not retries
	ErrorClassReportNotFound
)

// ClassifyError classifies an error into exactly one ErrorClass.
// ReportNotFound takes precedence over the transient/permanent wrappers.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var notFoundErr *ReportNotFoundError
	if errors.As(err, &notFoundErr) {
		return ErrorClassReportNotFound
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return ErrorClassPermanent
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return ErrorClassTransient
	}

	if IsTransient(err) {
		return ErrorClassTransient
	}

	return ErrorClassUnknown
}

// ClassifyFileError maps filesystem errors onto the retry taxonomy:
// a missing file is a ReportNotFoundError, permission problems are permanent,
// everything else (disk pressure, stale NFS handles) is assumed transient.
func ClassifyFileError(path string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewReportNotFound(path, err)
	}

	if errors.Is(err, fs.ErrPermission) {
		return NewPermanent(err)
	}

	return NewTransient(err)
}
