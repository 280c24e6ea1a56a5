package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/fingerprint"
	"github.com/vikstrand/aqhistory/internal/history/redisstore"
)

// envelope is the msgpack record stored under a fingerprint. Redis owns the
// hard expiry; FetchedAt/TTL ride along so callers still see entry metadata.
type envelope struct {
	FetchedAt time.Time    `msgpack:"fetched_at"`
	TTL       int64        `msgpack:"ttl_ns"`
	Points    model.Series `msgpack:"points"`
}

// Redis is the opt-in shared backend for multi-process deployments. Same
// contract as Memory; still non-persistent from this layer's point of view.
type Redis struct {
	cli     *redisstore.Client
	timeout time.Duration
}

func NewRedis(cli *redisstore.Client, opTimeout time.Duration) *Redis {
	return &Redis{cli: cli, timeout: opTimeout}
}

func (r *Redis) withTimeout() (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Redis) Get(fp string) (Entry, bool, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	raw, ok, err := r.cli.Get(ctx, fp)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get %q: %w", fp, err)
	}
	if !ok {
		return Entry{}, false, nil
	}
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		// Treat an undecodable record as a miss and drop it.
		_, _ = r.cli.Del(ctx, fp)
		return Entry{}, false, fmt.Errorf("cache decode %q: %w", fp, err)
	}
	return Entry{
		Fingerprint: fp,
		Payload:     env.Points,
		FetchedAt:   env.FetchedAt,
		TTL:         time.Duration(env.TTL),
	}, true, nil
}

func (r *Redis) Put(fp string, payload model.Series, ttl time.Duration) error {
	raw, err := msgpack.Marshal(envelope{
		FetchedAt: time.Now().UTC(),
		TTL:       int64(ttl),
		Points:    payload,
	})
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", fp, err)
	}

	ctx, cancel := r.withTimeout()
	defer cancel()
	if err := r.cli.Set(ctx, fp, raw, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", fp, err)
	}
	return nil
}

func (r *Redis) Invalidate(fps ...string) (int, error) {
	ctx, cancel := r.withTimeout()
	defer cancel()

	n, err := r.cli.Del(ctx, fps...)
	if err != nil {
		return n, fmt.Errorf("cache del %d keys: %w", len(fps), err)
	}
	return n, nil
}

func (r *Redis) InvalidateLocation(location string) (int, error) {
	prefix := fingerprint.LocationPrefix(fingerprint.NormalizeLocation(location))

	// Prefix scans can outlast a single op timeout; give them a wider bound.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := r.cli.DelPrefix(ctx, prefix)
	if err != nil {
		return n, fmt.Errorf("cache del location %q: %w", location, err)
	}
	return n, nil
}

func (r *Redis) Len() int {
	ctx, cancel := r.withTimeout()
	defer cancel()
	n, err := r.cli.DBSize(ctx)
	if err != nil {
		return 0
	}
	return n
}

var _ Store = (*Redis)(nil)
