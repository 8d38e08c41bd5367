package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateContent  = errors.New("duplicate content")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCategoryRequired  = errors.New("category required to restore an archived item")
	ErrLockTimeout       = errors.New("lock acquisition timed out")
	ErrStoreUnavailable  = errors.New("store unavailable")

	// Authentication errors
	ErrMissingSignature = errors.New("missing signature headers")
	ErrExpiredRequest   = errors.New("request expired")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrNotAdmin         = errors.New("admin access required")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// RetryableError marks a provider or delivery failure that should be retried
// before giving up.
type RetryableError struct {
	Err error
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// SkippableError wraps a per-file failure that is logged and skipped; the
// sweep continues with the next file.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// ErrorKind is the stable error identifier surfaced in API responses.
// Internal detail never leaves the process.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindInternal    ErrorKind = "internal"
)

// Classify maps a domain error to its API error kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrMissingSignature),
		errors.Is(err, ErrExpiredRequest),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrNotAdmin):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateContent),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrLockTimeout):
		return KindConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrCategoryRequired):
		return KindValidation
	default:
		return KindInternal
	}
}

// DeadLetterEntry records a notification that exhausted delivery retries.
type DeadLetterEntry struct {
	ID        string
	Path      string
	Error     string
	Payload   string
	CreatedAt time.Time
}
