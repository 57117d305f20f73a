package showads

import (
	"fmt"
	"strings"
)

// FailureClass buckets every transport outcome into one retry category.
type FailureClass string

const (
	ClassUnauthorized FailureClass = "unauthorized"  // 401: invalidate token, retry without backoff
	ClassRateLimited  FailureClass = "rate_limited"  // 429: retry with backoff
	ClassServerError  FailureClass = "server_error"  // 5xx: retry with backoff
	ClassClientError  FailureClass = "client_error"  // other 4xx: fatal
	ClassNetworkError FailureClass = "network_error" // connect/timeout: retry with backoff
)

const bodyExcerptLimit = 256

// APIError is one classified failed attempt against the ShowAds API.
type APIError struct {
	Op     string // endpoint path, e.g. "/auth"
	Class  FailureClass
	Status int    // 0 for network failures
	Body   string // response body excerpt
	cause  error  // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("showads %s: %s: %v", e.Op, e.Class, e.cause)
	}
	if e.Body != "" {
		return fmt.Sprintf("showads %s returned %d (%s): %s", e.Op, e.Status, e.Class, e.Body)
	}
	return fmt.Sprintf("showads %s returned %d (%s)", e.Op, e.Status, e.Class)
}

func (e *APIError) Unwrap() error { return e.cause }

// Retryable reports whether the retry policy may attempt this failure again.
func (e *APIError) Retryable() bool { return e.Class != ClassClientError }

// classifyStatus maps an HTTP status to a classified failure.
// Returns nil for any non-error status.
func classifyStatus(op string, status int, body []byte) *APIError {
	if status < 400 {
		return nil
	}

	var class FailureClass
	switch {
	case status == 401:
		class = ClassUnauthorized
	case status == 429:
		class = ClassRateLimited
	case status >= 500:
		class = ClassServerError
	default:
		class = ClassClientError
	}

	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return &APIError{Op: op, Class: class, Status: status, Body: excerpt}
}

// networkError classifies a failed transport round trip.
func networkError(op string, err error) *APIError {
	return &APIError{Op: op, Class: ClassNetworkError, cause: err}
}

// ExhaustedError is surfaced when the retry budget ran out. It wraps the
// last classified failure.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("showads %s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// DeliveryError aggregates the outcome of one SendCustomers call that had at
// least one fatally failed chunk. Sends already in flight when the first
// chunk failed were not cancelled, so some chunks may still have succeeded.
type DeliveryError struct {
	Chunks       int   // chunks dispatched
	FailedChunks []int // indexes of chunks whose delivery was not confirmed
	Unconfirmed  int   // record count across failed chunks
	First        error // first fatal chunk error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %d of %d chunks (%d records unconfirmed): %v",
		len(e.FailedChunks), e.Chunks, e.Unconfirmed, e.First)
}

func (e *DeliveryError) Unwrap() error { return e.First }
