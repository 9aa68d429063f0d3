package domain

import (
	"strings"
)

// ContentID is an opaque identifier for a piece of content to resolve.
// It is the root of every cache key.
type ContentID string

const maxContentIDLength = 512

// Validate checks basic shape only; the ID itself is opaque.
func (id ContentID) Validate() error {
	s := string(id)
	if strings.TrimSpace(s) == "" {
		return NewError(KindInvalidInput, "", "empty content id")
	}
	if len(s) > maxContentIDLength {
		return NewError(KindInvalidInput, "", "content id exceeds maximum length")
	}
	if strings.ContainsAny(s, "\n\r\t") {
		return NewError(KindInvalidInput, "", "content id contains control characters")
	}
	return nil
}

// CacheKey returns the canonical cache key for this content id.
func (id ContentID) CacheKey() string {
	return "resolve:" + string(id)
}
