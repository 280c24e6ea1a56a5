// Package cachestore maps query fingerprints to cached, freshness-windowed
// series payloads.
package cachestore

import (
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

// Entry is an immutable cache record. Replaced on refresh, never edited in
// place; payloads handed out are copies of the cached slice.
type Entry struct {
	Fingerprint string
	Payload     model.Series
	FetchedAt   time.Time
	TTL         time.Duration
}

// Expired reports whether the entry is stale at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= e.TTL
}

type Store interface {
	// Get returns a fresh entry, or ok=false when missing or expired.
	Get(fingerprint string) (Entry, bool, error)

	// Put atomically replaces any existing entry for the fingerprint.
	Put(fingerprint string, payload model.Series, ttl time.Duration) error

	// Invalidate removes the named entries and reports how many existed.
	Invalidate(fingerprints ...string) (int, error)

	// InvalidateLocation removes every entry whose query targets the
	// location, regardless of range, series or aggregation.
	InvalidateLocation(location string) (int, error)

	Len() int
}
