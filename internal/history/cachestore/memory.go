package cachestore

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/core/observability"
	"github.com/vikstrand/aqhistory/internal/history/fingerprint"
)

// Memory is the default process-lifetime store: capacity-bounded LRU with
// lazy TTL expiry on lookup.
type Memory struct {
	mu  sync.Mutex
	lru *lru.Cache[string, Entry]
	now func() time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	c, _ := lru.New[string, Entry](maxEntries)
	return &Memory{lru: c, now: time.Now}
}

// WithClock replaces the clock, for freshness tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(fp string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lru.Get(fp)
	if !ok {
		observability.ObserveCacheOp("get", nil)
		return Entry{}, false, nil
	}
	if e.Expired(m.now()) {
		m.lru.Remove(fp)
		observability.ObserveCacheOp("get", nil)
		return Entry{}, false, nil
	}
	observability.ObserveCacheOp("get", nil)
	e.Payload = e.Payload.Clone()
	return e, true, nil
}

func (m *Memory) Put(fp string, payload model.Series, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Add(fp, Entry{
		Fingerprint: fp,
		Payload:     payload.Clone(),
		FetchedAt:   m.now(),
		TTL:         ttl,
	})
	observability.ObserveCacheOp("put", nil)
	return nil
}

func (m *Memory) Invalidate(fps ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, fp := range fps {
		if m.lru.Remove(fp) {
			removed++
		}
	}
	observability.ObserveCacheOp("del", nil)
	return removed, nil
}

func (m *Memory) InvalidateLocation(location string) (int, error) {
	prefix := fingerprint.LocationPrefix(fingerprint.NormalizeLocation(location))

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) && m.lru.Remove(k) {
			removed++
		}
	}
	observability.ObserveCacheOp("del_location", nil)
	return removed, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

var _ Store = (*Memory)(nil)
