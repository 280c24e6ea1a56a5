// Package history composes validation, aggregation selection, caching,
// request coalescing and page assembly into the caller-facing query API.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/aggregation"
	"github.com/vikstrand/aqhistory/internal/history/assemble"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
	"github.com/vikstrand/aqhistory/internal/history/coalesce"
	"github.com/vikstrand/aqhistory/internal/history/confidence"
	"github.com/vikstrand/aqhistory/internal/history/fingerprint"
	"github.com/vikstrand/aqhistory/internal/history/validate"
	mylog "github.com/vikstrand/aqhistory/internal/logger"
)

type Options struct {
	TTLDefault         time.Duration
	TTLToday           time.Duration
	ConfidenceDefaults bool
}

type Service struct {
	validator *validate.Validator
	store     cachestore.Store
	coord     *coalesce.Coordinator
	asm       *assemble.Assembler
	logger    *slog.Logger

	ttlDefault         time.Duration
	ttlToday           time.Duration
	confidenceDefaults bool
	now                func() time.Time
}

func NewService(
	v *validate.Validator,
	store cachestore.Store,
	asm *assemble.Assembler,
	logger *slog.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTLDefault <= 0 {
		opts.TTLDefault = 24 * time.Hour
	}
	if opts.TTLToday <= 0 {
		opts.TTLToday = 5 * time.Minute
	}
	return &Service{
		validator:          v,
		store:              store,
		coord:              coalesce.New(store, logger),
		asm:                asm,
		logger:             logger,
		ttlDefault:         opts.TTLDefault,
		ttlToday:           opts.TTLToday,
		confidenceDefaults: opts.ConfidenceDefaults,
		now:                time.Now,
	}
}

// WithClock replaces the clock used for TTL selection, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Fetch validates the raw query and returns its assembled series, from cache
// when fresh, otherwise via a single coalesced upstream fetch.
func (s *Service) Fetch(ctx context.Context, raw model.RawQuery) (model.Series, error) {
	start := time.Now()

	q, err := s.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	q.Aggregation = aggregation.For(q)

	fp := fingerprint.Key(q)
	ttl := s.ttlFor(q)

	series, hit, err := s.coord.Resolve(ctx, fp, ttl, func(ctx context.Context) (model.Series, error) {
		return s.asm.Fetch(ctx, q)
	})
	if err != nil {
		s.logger.Error("history fetch failed",
			"location", q.Location, "span_days", q.SpanDays(),
			"agg", q.Aggregation.String(), "fingerprint", fp,
			"dur", time.Since(start).String(), "err", err)
		return nil, err
	}

	if s.confidenceDefaults {
		series = confidence.WithDefaults(series)
	}

	status := "miss"
	if hit {
		status = "hit"
	}
	s.logger.Info("history fetch",
		"location", q.Location, "span_days", q.SpanDays(),
		"agg", q.Aggregation.String(), "cache_status", status,
		"points", len(series), "ttl", ttl.String(),
		"dur", time.Since(start).String())

	return pageView(series, q.Page), nil
}

// Prefetch runs the fetch pipeline in the background to warm the cache.
// Advisory: the caller never blocks past issuance and never sees an error.
func (s *Service) Prefetch(raw model.RawQuery) {
	ctx := mylog.WithComponent(context.Background(), "prefetch")
	go func() {
		if _, err := s.Fetch(ctx, raw); err != nil {
			s.logger.Warn("prefetch failed", "location", raw.Location, "err", err)
		}
	}()
}

// Invalidate removes a single cached entry by fingerprint.
func (s *Service) Invalidate(fp string) (int, error) {
	return s.store.Invalidate(fp)
}

// InvalidateLocation removes every cached range for a location.
func (s *Service) InvalidateLocation(location string) (int, error) {
	return s.store.InvalidateLocation(location)
}

// QueryKey exposes the cache identity of a raw query so callers can observe
// and invalidate it.
func (s *Service) QueryKey(raw model.RawQuery) (string, error) {
	q, err := s.validator.Validate(raw)
	if err != nil {
		return "", err
	}
	q.Aggregation = aggregation.For(q)
	return fingerprint.Key(q), nil
}

// Historical data is immutable once finalized; only ranges touching today
// are still logically mutable upstream.
func (s *Service) ttlFor(q model.Query) time.Duration {
	today := s.now().UTC().Truncate(24 * time.Hour)
	if !q.End.Before(today) {
		return s.ttlToday
	}
	return s.ttlDefault
}

// pageView slices the assembled series for callers that pinned a page. The
// cache always holds the full range.
func pageView(s model.Series, p *model.Page) model.Series {
	if p == nil || p.Size <= 0 {
		return s
	}
	lo := p.Index * p.Size
	if lo >= len(s) {
		return model.Series{}
	}
	hi := lo + p.Size
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}
