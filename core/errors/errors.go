// Package errors implements the error taxonomy shared by the chat
// orchestrator, the provider adapters, and the stores. Every failure that
// crosses a package boundary is classified, and the class decides retry
// behavior and what the caller is allowed to tell the user.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Class identifies the failure category of a ClassedError.
type Class int

const (
	// ClassSessionNotFound indicates an unknown session id. The orchestrator
	// treats this as "create a fresh session", never as a caller-visible error.
	ClassSessionNotFound Class = iota

	// ClassSessionBusy indicates a turn is already in flight for the session.
	ClassSessionBusy

	// ClassRateLimited indicates the provider rejected the call with a rate
	// limit. Retryable with backoff; RetryAfter carries the provider hint.
	ClassRateLimited

	// ClassProviderUnavailable indicates a transient provider-side failure
	// (5xx, connection reset). Retryable with backoff.
	ClassProviderUnavailable

	// ClassTimeout indicates the provider call exceeded its deadline.
	// Retried once, then surfaced.
	ClassTimeout

	// ClassInvalidRequest indicates a caller or configuration bug.
	// Never retried.
	ClassInvalidRequest

	// ClassContentPolicy indicates the provider refused the content.
	// Never retried; surfaced as an assistant refusal, not a system error.
	ClassContentPolicy

	// ClassStorage indicates a session or embedding store failure. Logged
	// and reconciled; never allowed to erase an already-generated response.
	ClassStorage
)

var classNames = map[Class]string{
	ClassSessionNotFound:     "session_not_found",
	ClassSessionBusy:         "session_busy",
	ClassRateLimited:         "rate_limited",
	ClassProviderUnavailable: "provider_unavailable",
	ClassTimeout:             "timeout",
	ClassInvalidRequest:      "invalid_request",
	ClassContentPolicy:       "content_policy_rejection",
	ClassStorage:             "storage_failure",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// Advice tells the caller what to relay to the user: retry later, fix the
// request, or accept that the content cannot be processed.
type Advice int

const (
	AdviceNone Advice = iota
	AdviceRetry
	AdviceRephrase
	AdviceUnprocessable
)

var adviceByClass = map[Class]Advice{
	ClassSessionBusy:         AdviceRetry,
	ClassRateLimited:         AdviceRetry,
	ClassProviderUnavailable: AdviceRetry,
	ClassTimeout:             AdviceRetry,
	ClassStorage:             AdviceRetry,
	ClassInvalidRequest:      AdviceRephrase,
	ClassContentPolicy:       AdviceUnprocessable,
}

// AdviceFor returns the user-facing advice for an error's class.
func AdviceFor(err error) Advice {
	return adviceByClass[ClassOf(err)]
}

func (a Advice) String() string {
	switch a {
	case AdviceRetry:
		return "retry"
	case AdviceRephrase:
		return "rephrase"
	case AdviceUnprocessable:
		return "unprocessable"
	default:
		return "none"
	}
}

// ClassedError wraps an error with its failure class.
type ClassedError struct {
	Class      Class
	Message    string
	Underlying error
	StatusCode int
	RetryAfter time.Duration
}

func (e *ClassedError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ClassedError) Unwrap() error {
	return e.Underlying
}

// Is matches two ClassedErrors by class, so sentinel comparisons like
// errors.Is(err, ErrRateLimited) work regardless of wrapping.
func (e *ClassedError) Is(target error) bool {
	var ce *ClassedError
	if errors.As(target, &ce) {
		return e.Class == ce.Class
	}
	return false
}

// New creates a ClassedError with the given class and message.
func New(class Class, message string, underlying error) *ClassedError {
	return &ClassedError{
		Class:      class,
		Message:    message,
		Underlying: underlying,
	}
}

// WithStatusCode attaches the provider HTTP status.
func (e *ClassedError) WithStatusCode(code int) *ClassedError {
	e.StatusCode = code
	return e
}

// WithRetryAfter attaches the provider retry-after hint.
func (e *ClassedError) WithRetryAfter(d time.Duration) *ClassedError {
	e.RetryAfter = d
	return e
}

// Sentinel errors, one per class. Compare with errors.Is.
var (
	ErrSessionNotFound     = New(ClassSessionNotFound, "session not found", nil)
	ErrSessionBusy         = New(ClassSessionBusy, "session busy", nil)
	ErrRateLimited         = New(ClassRateLimited, "rate limited", nil).WithStatusCode(http.StatusTooManyRequests)
	ErrProviderUnavailable = New(ClassProviderUnavailable, "provider unavailable", nil)
	ErrTimeout             = New(ClassTimeout, "provider call timed out", nil)
	ErrInvalidRequest      = New(ClassInvalidRequest, "invalid request", nil)
	ErrContentPolicy       = New(ClassContentPolicy, "content policy rejection", nil)
	ErrStorage             = New(ClassStorage, "storage failure", nil)
)

// ClassOf extracts the Class from an error, defaulting to InvalidRequest
// for unclassified errors (the non-retryable safe default).
func ClassOf(err error) Class {
	var ce *ClassedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassInvalidRequest
}

// RetryAfterOf extracts the retry-after hint, if any.
func RetryAfterOf(err error) time.Duration {
	var ce *ClassedError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}

// IsRetryable reports whether the error's class may be retried at all.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ClassRateLimited, ClassProviderUnavailable, ClassTimeout:
		return true
	default:
		return false
	}
}
