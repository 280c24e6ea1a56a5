package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
)

func TestResolve_CacheHitSkipsProduce(t *testing.T) {
	store := cachestore.NewMemory(16)
	store.Put("fp", model.Series{{Value: 42}}, time.Minute)
	c := New(store, nil)

	var calls atomic.Int32
	got, hit, err := c.Resolve(context.Background(), "fp", time.Minute,
		func(context.Context) (model.Series, error) {
			calls.Add(1)
			return nil, errors.New("should not be called")
		})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !hit || calls.Load() != 0 {
		t.Fatalf("hit=%v calls=%d", hit, calls.Load())
	}
	if len(got) != 1 || got[0].Value != 42 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestResolve_ConcurrentCallersShareOneProduce(t *testing.T) {
	store := cachestore.NewMemory(16)
	c := New(store, nil)

	gate := make(chan struct{})
	var calls atomic.Int32
	produce := func(context.Context) (model.Series, error) {
		calls.Add(1)
		<-gate
		return model.Series{{Value: 7}}, nil
	}

	const n = 20
	results := make([]model.Series, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.Resolve(context.Background(), "fp", time.Minute, produce)
		}(i)
	}

	// Let callers pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("produce invoked %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if len(results[i]) != 1 || results[i][0].Value != 7 {
			t.Fatalf("caller %d got %+v", i, results[i])
		}
	}
	if _, ok, _ := store.Get("fp"); !ok {
		t.Fatalf("result not cached after owner completed")
	}
}

func TestResolve_FailureBroadcastAndNotCached(t *testing.T) {
	store := cachestore.NewMemory(16)
	c := New(store, nil)

	boom := errors.New("upstream down")
	gate := make(chan struct{})
	var calls atomic.Int32
	produce := func(context.Context) (model.Series, error) {
		calls.Add(1)
		<-gate
		return nil, boom
	}

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.Resolve(context.Background(), "fp", time.Minute, produce)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("produce invoked %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if !errors.Is(errs[i], boom) {
			t.Fatalf("caller %d: err=%v want broadcast failure", i, errs[i])
		}
	}
	if store.Len() != 0 {
		t.Fatalf("failed lookup was cached")
	}

	// Next caller retries from scratch.
	if _, _, err := c.Resolve(context.Background(), "fp", time.Minute,
		func(context.Context) (model.Series, error) {
			calls.Add(1)
			return model.Series{{Value: 1}}, nil
		}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("retry did not reinvoke produce, calls=%d", got)
	}
}

func TestResolve_CancelledWaiterDoesNotAbortOwner(t *testing.T) {
	store := cachestore.NewMemory(16)
	c := New(store, nil)

	gate := make(chan struct{})
	done := make(chan struct{})
	produce := func(ctx context.Context) (model.Series, error) {
		defer close(done)
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return model.Series{{Value: 3}}, nil
	}

	ownerErr := make(chan error, 1)
	go func() {
		_, _, err := c.Resolve(context.Background(), "fp", time.Minute, produce)
		ownerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	waitCtx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		_, _, err := c.Resolve(waitCtx, "fp", time.Minute, produce)
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-waiterErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("waiter err=%v want context.Canceled", err)
	}

	close(gate)
	<-done
	if err := <-ownerErr; err != nil {
		t.Fatalf("owner err=%v; cancellation of a waiter leaked into the fetch", err)
	}
	if _, ok, _ := store.Get("fp"); !ok {
		t.Fatalf("cache not populated after waiter cancellation")
	}
}

func TestResolve_LateCallerSeesCachedValue(t *testing.T) {
	store := cachestore.NewMemory(16)
	c := New(store, nil)

	var calls atomic.Int32
	produce := func(context.Context) (model.Series, error) {
		calls.Add(1)
		return model.Series{{Value: 5}}, nil
	}

	if _, _, err := c.Resolve(context.Background(), "fp", time.Minute, produce); err != nil {
		t.Fatalf("first: %v", err)
	}
	got, hit, err := c.Resolve(context.Background(), "fp", time.Minute, produce)
	if err != nil || !hit {
		t.Fatalf("second: hit=%v err=%v", hit, err)
	}
	if calls.Load() != 1 || got[0].Value != 5 {
		t.Fatalf("calls=%d got=%+v", calls.Load(), got)
	}
}
