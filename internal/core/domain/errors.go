package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies resolution errors. Per-source kinds stay inside the race
// loop; only the aggregate kinds reach callers.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindCancelled          Kind = "cancelled"
	KindTimeout            Kind = "timeout"
	KindSourceTimeout      Kind = "source_timeout"
	KindContentUnavailable Kind = "content_unavailable"
	KindRateLimited        Kind = "rate_limited"
	KindValidationFailed   Kind = "validation_failed"
	KindAllSourcesFailed   Kind = "all_sources_failed"
	KindNoHealthySources   Kind = "no_healthy_sources"
)

// Error is a classified resolution error. SourceID is empty for errors not
// attributable to a single source.
type Error struct {
	Kind     Kind
	SourceID string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.SourceID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error without an underlying cause.
func NewError(kind Kind, sourceID, message string) *Error {
	return &Error{Kind: kind, SourceID: sourceID, Message: message}
}

// WrapError classifies an underlying error.
func WrapError(kind Kind, sourceID string, err error) *Error {
	return &Error{Kind: kind, SourceID: sourceID, Message: err.Error(), Err: err}
}

// KindOf returns the kind of a classified error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		return KindAllSourcesFailed
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the facade may retry after this error.
// Cancellation, timeouts and bad input are terminal for the request.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindAllSourcesFailed, KindNoHealthySources:
		return true
	}
	return false
}

// SourceFailure is the structured diagnostic recorded for one failed attempt.
type SourceFailure struct {
	SourceID  string    `json:"source_id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AggregateError is the terminal error when every candidate in the chain
// failed. It enumerates each per-source failure for diagnostics.
type AggregateError struct {
	ContentID ContentID
	Failures  []SourceFailure
}

func (e *AggregateError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("all sources failed for %q", e.ContentID)
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s(%s): %s", f.SourceID, f.Kind, f.Message)
	}
	return fmt.Sprintf("all sources failed for %q: %s", e.ContentID, strings.Join(parts, "; "))
}

// Classify maps a raw extractor or transport error onto the taxonomy.
// Already-classified errors pass through unchanged.
func Classify(err error, sourceID string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindSourceTimeout, sourceID, err)
	}
	if errors.Is(err, context.Canceled) {
		return WrapError(KindCancelled, sourceID, err)
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "quota"):
		return WrapError(KindRateLimited, sourceID, err)
	case strings.Contains(s, "404") || strings.Contains(s, "not found") ||
		strings.Contains(s, "unavailable in your country") ||
		strings.Contains(s, "removed"):
		return WrapError(KindContentUnavailable, sourceID, err)
	}

	// Network errors, 5xx and anything unrecognized: advance to the next
	// endpoint or source.
	return WrapError(KindSourceTimeout, sourceID, err)
}
