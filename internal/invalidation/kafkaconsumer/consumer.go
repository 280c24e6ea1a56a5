// Package kafkaconsumer applies upstream invalidation events to the cache.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/vikstrand/aqhistory/internal/core/observability"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
	"github.com/vikstrand/aqhistory/internal/invalidation"
)

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  cachestore.Store
	dedupe *revisionDedupe
}

func New(cfg Config, logger *slog.Logger, store cachestore.Store) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		dedupe: newRevisionDedupe(cfg.DedupeSize),
	}
}

// Start consumes invalidation events until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing cache store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single invalidation event message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveInvalidation("decode", 0, err)
		c.logger.ErrorContext(ctx, "invalidation decode failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.ObserveInvalidation(ev.Op, 0, err)
		c.logger.ErrorContext(ctx, "invalidation event rejected",
			"topic", msg.Topic, "offset", msg.Offset, "err", err)
		// Malformed events are logged and skipped, not retried forever.
		return nil
	}

	if !c.dedupe.shouldApply(ev.Location, ev.Revision) {
		c.logger.DebugContext(ctx, "stale invalidation event skipped",
			"location", ev.Location, "revision", ev.Revision)
		return nil
	}

	removed, err := c.store.InvalidateLocation(ev.Location)
	observability.ObserveInvalidation(ev.Op, removed, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "invalidation apply failed",
			"location", ev.Location, "op", ev.Op, "err", err)
		return fmt.Errorf("invalidate location: %w", err)
	}

	c.logger.InfoContext(ctx, "invalidated location",
		"location", ev.Location, "op", ev.Op,
		"revision", ev.Revision, "removed", removed)
	return nil
}
