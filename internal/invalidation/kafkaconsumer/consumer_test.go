package kafkaconsumer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
	"github.com/vikstrand/aqhistory/internal/history/fingerprint"
	"github.com/vikstrand/aqhistory/internal/invalidation"
)

func newConsumer(store cachestore.Store) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{DedupeSize: 16}, logger, store)
}

func message(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "aq.invalidations", Value: b}
}

func seed(t *testing.T, store cachestore.Store, location string) string {
	t.Helper()
	q := model.Query{
		Location: location,
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	fp := fingerprint.Key(q)
	if err := store.Put(fp, model.Series{{Value: 1}}, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return fp
}

func TestProcessOne_InvalidatesLocation(t *testing.T) {
	store := cachestore.NewMemory(16)
	target := seed(t, store, "delhi")
	other := seed(t, store, "oslo")
	c := newConsumer(store)

	ev := invalidation.Event{
		Version: 1, Op: "correction", Location: "Delhi",
		TS: time.Now().UTC(), Revision: 1,
	}
	if err := c.ProcessOne(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if _, ok, _ := store.Get(target); ok {
		t.Fatalf("corrected location still cached")
	}
	if _, ok, _ := store.Get(other); !ok {
		t.Fatalf("unrelated location invalidated")
	}
}

func TestProcessOne_ReplayIsSkipped(t *testing.T) {
	store := cachestore.NewMemory(16)
	c := newConsumer(store)

	ev := invalidation.Event{
		Version: 1, Op: "finalize", Location: "delhi",
		TS: time.Now().UTC(), Revision: 3,
	}
	if err := c.ProcessOne(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("first: %v", err)
	}

	// Re-seed; the replayed event must not clear it.
	fp := seed(t, store, "delhi")
	if err := c.ProcessOne(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if _, ok, _ := store.Get(fp); !ok {
		t.Fatalf("replayed revision was applied")
	}
}

func TestProcessOne_MalformedEventSkippedWithoutError(t *testing.T) {
	store := cachestore.NewMemory(16)
	fp := seed(t, store, "delhi")
	c := newConsumer(store)

	ev := invalidation.Event{
		Version: 1, Op: "reindex", Location: "delhi",
		TS: time.Now().UTC(), Revision: 1,
	}
	if err := c.ProcessOne(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("invalid events must be skipped, not retried: %v", err)
	}
	if _, ok, _ := store.Get(fp); !ok {
		t.Fatalf("invalid event was applied")
	}
}

func TestProcessOne_UndecodableMessageIsAnError(t *testing.T) {
	c := newConsumer(cachestore.NewMemory(16))
	msg := &sarama.ConsumerMessage{Topic: "aq.invalidations", Value: []byte("{nope")}
	if err := c.ProcessOne(context.Background(), msg); err == nil {
		t.Fatalf("expected decode error")
	}
}
