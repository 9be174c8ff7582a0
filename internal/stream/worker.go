package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_pipeline_entries_processed_total",
		Help: "The total number of entries acknowledged per group",
	}, []string{"group"})
	handlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_pipeline_handler_failures_total",
		Help: "The total number of handler failures that left an entry pending",
	}, []string{"group"})
	entriesClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_pipeline_entries_claimed_total",
		Help: "The total number of entries claimed from dead consumers",
	}, []string{"group"})
	entriesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_pipeline_entries_dead_lettered_total",
		Help: "The total number of entries routed to a dead-letter stream",
	}, []string{"group"})
)

// Handler processes one decoded entry. A plain error leaves the entry pending
// for redelivery; an error wrapped with Permanent sends it to the topic's
// dead-letter stream instead.
type Handler func(ctx context.Context, e Entry) error

type WorkerConfig struct {
	Topic Topic
	Group string

	BatchSize    int64         // max new entries per poll
	Block        time.Duration // poll block bound
	PendingBatch int64         // max pending entries per claim scan
	ClaimMinIdle time.Duration // idle threshold before claiming
	Backoff      time.Duration // pause after an iteration-level failure
	// MaxDeliveries dead-letters an entry once its delivery count reaches the
	// cap. Zero disables the cap and retries forever.
	MaxDeliveries int64
}

func (c *WorkerConfig) fillDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.PendingBatch <= 0 {
		c.PendingBatch = 100
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = 60 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
}

// Worker is one long-running consumer in a group. Each instance carries an
// ephemeral consumer name; coordination happens entirely through the log's
// consumer-group semantics, so any number of workers may run against the same
// (topic, group).
type Worker struct {
	cfg      WorkerConfig
	log      Log
	handler  Handler
	consumer string
	logger   *slog.Logger
}

func NewWorker(log Log, cfg WorkerConfig, h Handler, logger *slog.Logger) *Worker {
	cfg.fillDefaults()
	consumer := fmt.Sprintf("%s-%s", cfg.Group, uuid.NewString())
	return &Worker{
		cfg:      cfg,
		log:      log,
		handler:  h,
		consumer: consumer,
		logger:   logger.With("topic", cfg.Topic.Key, "group", cfg.Group, "consumer", consumer),
	}
}

// Run loops until ctx is cancelled. Iteration-level failures (the log store
// unreachable) pause for the configured backoff and retry; handler failures
// never stop the loop. The batch in hand is always finished before returning,
// so cancellation drains cleanly.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		default:
		}

		if err := w.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return ctx.Err()
			}
			w.logger.Error("iteration failed, backing off", "error", err, "backoff", w.cfg.Backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.Backoff):
			}
		}
	}
}

func (w *Worker) iterate(ctx context.Context) error {
	entries, err := w.log.ReadNew(ctx, w.cfg.Topic.Key, w.cfg.Group, w.consumer, w.cfg.Block, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("read new entries: %w", err)
	}
	for _, e := range entries {
		w.process(ctx, e)
	}
	return w.scanPending(ctx)
}

// scanPending recovers entries delivered to a consumer that died before
// acknowledging. Claimed entries are processed identically to new ones, which
// means they can complete out of original id order; only first delivery is
// ordered.
func (w *Worker) scanPending(ctx context.Context) error {
	pending, err := w.log.ListPending(ctx, w.cfg.Topic.Key, w.cfg.Group, w.cfg.PendingBatch)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	var stale, exhausted []string
	for _, p := range pending {
		if p.Idle < w.cfg.ClaimMinIdle {
			continue
		}
		if w.cfg.MaxDeliveries > 0 && p.DeliveryCount >= w.cfg.MaxDeliveries {
			exhausted = append(exhausted, p.ID)
			continue
		}
		stale = append(stale, p.ID)
	}

	if len(exhausted) > 0 {
		claimed, err := w.log.Claim(ctx, w.cfg.Topic.Key, w.cfg.Group, w.consumer, w.cfg.ClaimMinIdle, exhausted)
		if err != nil {
			return fmt.Errorf("claim exhausted entries: %w", err)
		}
		for _, e := range claimed {
			w.logger.Error("delivery count exhausted, dead-lettering", "id", e.ID, "max_deliveries", w.cfg.MaxDeliveries)
			w.deadLetter(ctx, e, fmt.Sprintf("delivery count exhausted after %d deliveries", w.cfg.MaxDeliveries))
		}
	}

	if len(stale) == 0 {
		return nil
	}
	claimed, err := w.log.Claim(ctx, w.cfg.Topic.Key, w.cfg.Group, w.consumer, w.cfg.ClaimMinIdle, stale)
	if err != nil {
		return fmt.Errorf("claim stale entries: %w", err)
	}
	for _, e := range claimed {
		entriesClaimed.WithLabelValues(w.cfg.Group).Inc()
		w.logger.Info("claimed stale entry", "id", e.ID)
		w.process(ctx, e)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, e Entry) {
	err := w.handler(ctx, e)
	if err == nil {
		if err := w.log.Ack(ctx, w.cfg.Topic.Key, w.cfg.Group, e.ID); err != nil {
			// Left pending; redelivery via the claim path is harmless because
			// delivery is at-least-once anyway.
			w.logger.Error("ack failed", "id", e.ID, "error", err)
			return
		}
		entriesProcessed.WithLabelValues(w.cfg.Group).Inc()
		return
	}

	if IsPermanent(err) {
		w.logger.Error("handler failed permanently, dead-lettering", "id", e.ID, "error", err)
		w.deadLetter(ctx, e, err.Error())
		return
	}

	handlerFailures.WithLabelValues(w.cfg.Group).Inc()
	w.logger.Error("handler failed, entry left pending", "id", e.ID, "error", err)
}

// deadLetter copies the entry to the topic's dead-letter stream and acks the
// original. The copy carries the original entry id and the failure reason so
// the record can be traced and replayed. If the copy fails the entry stays
// pending and the next claim scan tries again.
func (w *Worker) deadLetter(ctx context.Context, e Entry, reason string) {
	fields := make(map[string]string, len(e.Fields)+2)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields["source_id"] = e.ID
	fields["error"] = reason
	if _, err := w.log.Append(ctx, w.cfg.Topic.DeadLetter(), fields, w.cfg.Topic.MaxLen); err != nil {
		w.logger.Error("dead-letter append failed", "id", e.ID, "error", err)
		return
	}
	if err := w.log.Ack(ctx, w.cfg.Topic.Key, w.cfg.Group, e.ID); err != nil {
		w.logger.Error("dead-letter ack failed", "id", e.ID, "error", err)
		return
	}
	entriesDeadLettered.WithLabelValues(w.cfg.Group).Inc()
}
