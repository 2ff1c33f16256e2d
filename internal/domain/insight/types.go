// Package insight contains the TTL-bounded cache for derived investigation
// results (findings, trend analyses, health summaries).
package insight

import "time"

// DefaultTTL is the fallback time-to-live for stored insights.
const DefaultTTL = 3600 * time.Second

// Entry is a single cached insight.
type Entry struct {
	// Key is the caller-chosen identifier for this insight.
	Key string `json:"key"`
	// Payload is the cached structured value. Opaque to the cache.
	Payload any `json:"payload"`
	// StoredAt is when the entry was written (UTC).
	StoredAt time.Time `json:"stored_at"`
	// TTL is how long the entry stays visible after StoredAt.
	TTL time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant after which the entry is no longer visible.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Snapshot is an introspection view of a cached entry, expired or not.
// Correctness-sensitive reads must use Cache.Get instead.
type Snapshot struct {
	Entry
	// Age is how long ago the entry was stored.
	Age time.Duration `json:"age"`
	// Expired reports whether the entry is past its TTL.
	Expired bool `json:"expired"`
}
