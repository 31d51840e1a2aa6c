package model

import (
	"errors"
	"fmt"
)

// Failure taxonomy sentinels.
// Typed errors below match these through errors.Is, so callers can branch on
// the kind without unpacking the concrete type.
var (
	// ErrBlocked means the service detected automated access. Not retryable;
	// the whole run must stop issuing requests.
	ErrBlocked = errors.New("blocked by search service")

	// ErrThrottled means the service asked the client to slow down.
	ErrThrottled = errors.New("throttled by search service")

	// ErrTransient covers network failures, timeouts and server errors.
	ErrTransient = errors.New("transient fetch failure")

	// ErrNotFound means the requested listing does not exist. Terminal; the
	// caller treats it as an empty result.
	ErrNotFound = errors.New("listing not found")

	// ErrUnrecognizedPage means the page is not a result listing (for example
	// an interstitial or CAPTCHA page).
	ErrUnrecognizedPage = errors.New("unrecognized result page")

	// ErrWriteFailed means a graph store write was rolled back.
	ErrWriteFailed = errors.New("graph store write failed")
)

// FetchKind classifies a fetch failure.
type FetchKind int

const (
	// FetchTransient is retried with backoff.
	FetchTransient FetchKind = iota
	// FetchThrottled is retried with backoff.
	FetchThrottled
	// FetchBlocked halts the run.
	FetchBlocked
	// FetchNotFound is terminal and yields an empty result.
	FetchNotFound
)

// String returns the kind name.
func (k FetchKind) String() string {
	switch k {
	case FetchTransient:
		return "transient"
	case FetchThrottled:
		return "throttled"
	case FetchBlocked:
		return "blocked"
	case FetchNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Retryable reports whether the fetcher may retry this kind.
func (k FetchKind) Retryable() bool {
	return k == FetchTransient || k == FetchThrottled
}

func (k FetchKind) sentinel() error {
	switch k {
	case FetchThrottled:
		return ErrThrottled
	case FetchBlocked:
		return ErrBlocked
	case FetchNotFound:
		return ErrNotFound
	default:
		return ErrTransient
	}
}

// FetchError is returned by the fetcher once a request has failed for good.
type FetchError struct {
	Kind       FetchKind
	URL        string
	StatusCode int
	Attempts   int
	Reason     string
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ParseError is returned when a page's overall structure is not a result listing.
type ParseError struct {
	URL    string
	Reason string
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("parse %s: unrecognized page", e.URL)
	}
	return fmt.Sprintf("parse %s: unrecognized page: %s", e.URL, e.Reason)
}

// Is matches ErrUnrecognizedPage.
func (e *ParseError) Is(target error) bool {
	return target == ErrUnrecognizedPage
}

// StorageError is returned when one atomic graph store write was rolled back.
type StorageError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrWriteFailed.
func (e *StorageError) Is(target error) bool {
	return target == ErrWriteFailed
}
