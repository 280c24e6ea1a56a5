package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// revisionDedupe drops replayed or out-of-order events per location.
type revisionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newRevisionDedupe(size int) *revisionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &revisionDedupe{lru: c}
}

// returns true if rev is greater than the last seen revision for the key
func (d *revisionDedupe) shouldApply(key string, rev uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok {
		if rev <= last {
			return false
		}
	}
	d.lru.Add(key, rev)
	return true
}
