package domain

import (
	"time"
)

// EntrySchemaVersion is bumped whenever the envelope or descriptor layout
// changes; entries with a different version are treated as malformed.
const EntrySchemaVersion = 2

// CacheEntry is the envelope stored by every cache tier. The tier that
// stored an entry owns it and may expire or evict it independently.
type CacheEntry struct {
	Payload       *StreamDescriptor `json:"payload"`
	StoredAt      time.Time         `json:"stored_at"`
	TTL           time.Duration     `json:"ttl"`
	OriginTier    string            `json:"origin_tier"`
	SchemaVersion int               `json:"schema_version"`
}

// NewCacheEntry wraps a descriptor for storage at the given tier.
func NewCacheEntry(d *StreamDescriptor, ttl time.Duration, originTier string) *CacheEntry {
	return &CacheEntry{
		Payload:       d,
		StoredAt:      time.Now(),
		TTL:           ttl,
		OriginTier:    originTier,
		SchemaVersion: EntrySchemaVersion,
	}
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Valid reports whether the entry is well-formed and within its TTL.
func (e *CacheEntry) Valid(now time.Time) bool {
	if e == nil || e.Payload == nil || e.SchemaVersion != EntrySchemaVersion {
		return false
	}
	return e.Age(now) < e.TTL
}
