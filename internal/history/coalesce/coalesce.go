// Package coalesce deduplicates concurrent identical queries so at most one
// producing fetch per fingerprint is ever in flight.
package coalesce

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/core/observability"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
)

// Produce performs the actual upstream fetch for a fingerprint.
type Produce func(ctx context.Context) (model.Series, error)

type Coordinator struct {
	group  singleflight.Group
	store  cachestore.Store
	logger *slog.Logger
}

func New(store cachestore.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, logger: logger}
}

// Resolve returns the cached series for the fingerprint, or joins/starts the
// single in-flight fetch for it. On success the result is stored with the
// given ttl before waiters are released; failures are broadcast and never
// cached. The bool reports a cache hit.
//
// The owner fetch runs on a context detached from the caller: a cancelled
// waiter abandons its wait, but the fetch completes and fills the cache for
// the remaining and future callers.
func (c *Coordinator) Resolve(
	ctx context.Context,
	fp string,
	ttl time.Duration,
	produce Produce,
) (model.Series, bool, error) {
	if entry, ok, err := c.store.Get(fp); err != nil {
		c.logger.Warn("cache get failed, continuing to fetch path", "fingerprint", fp, "err", err)
	} else if ok {
		observability.IncCacheHit()
		return entry.Payload, true, nil
	}
	observability.IncCacheMiss()

	ownerCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(fp, func() (any, error) {
		series, err := produce(ownerCtx)
		if err != nil {
			return nil, err
		}
		if perr := c.store.Put(fp, series, ttl); perr != nil {
			c.logger.Warn("cache put failed, serving uncached result",
				"fingerprint", fp, "err", perr)
		}
		return series, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			observability.IncCoalescedWaiter()
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(model.Series), false, nil
	case <-ctx.Done():
		// Only this caller's wait is abandoned; the owner goroutine keeps
		// running on ownerCtx.
		return nil, false, ctx.Err()
	}
}
