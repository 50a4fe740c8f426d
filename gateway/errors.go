package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrNotFound is returned when the spreadsheet (or a worksheet in it) does not exist.
var ErrNotFound = errors.New("spreadsheet not found")

// ErrorClass represents how the gateway treats a failed remote call.
type ErrorClass int

const (
	// ErrorClassRateLimited is a quota-exceeded response; retried after the rate-limit delay.
	ErrorClassRateLimited ErrorClass = iota
	// ErrorClassRetryable covers other service errors and network failures; retried after the default delay.
	ErrorClassRetryable
	// ErrorClassUnauthorized means the cached credentials were rejected; reauthorize and retry once.
	ErrorClassUnauthorized
	// ErrorClassNotFound is never retried.
	ErrorClassNotFound
	// ErrorClassFatal is never retried.
	ErrorClassFatal
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRateLimited:
		return "rate_limited"
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassUnauthorized:
		return "unauthorized"
	case ErrorClassNotFound:
		return "not_found"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error from the Sheets/Drive client onto the retry policy.
//
// Quota errors (429) are rate limited. Any other googleapi.Error code is
// retryable, except 401 (reauthorize) and 404 (not found). Network-level
// failures are retryable. Everything else (encoding errors, canceled
// contexts) is fatal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassFatal
	}
	if errors.Is(err, ErrNotFound) {
		return ErrorClassNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return ErrorClassRateLimited
		case http.StatusUnauthorized:
			return ErrorClassUnauthorized
		case http.StatusNotFound:
			return ErrorClassNotFound
		default:
			return ErrorClassRetryable
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return ErrorClassRetryable
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return ErrorClassRetryable
	}
	return ErrorClassFatal
}

// TransientError is returned when a retryable failure outlived the attempt budget.
type TransientError struct {
	Op       string
	Attempts int
	Class    ErrorClass
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("sheets %s: gave up after %d attempts (%s): %v", e.Op, e.Attempts, e.Class, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a setup or credential failure. It is never retried.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("sheets %s: %v", e.Op, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// Verdict is the gateway's answer for a failed call: whether the caller
// should re-invoke it and how long to wait first.
type Verdict struct {
	Class ErrorClass
	Retry bool
	Wait  time.Duration
}
