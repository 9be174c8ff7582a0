package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cdp/internal/usecase"

	"github.com/segmentio/kafka-go"
)

// Consumer is the slice of the Kafka reader the bridge needs.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Bridge republishes externally produced customer events onto the raw-events
// stream. A fetched record is held and retried until it is published or
// deliberately dropped, and only then committed; fetching ahead would let a
// later commit advance the group offset past the failed record, silently
// skipping it.
type Bridge struct {
	consumer   Consumer
	ingest     *usecase.IngestEvent
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

func New(consumer Consumer, ingest *usecase.IngestEvent, logger *slog.Logger) *Bridge {
	return &Bridge{
		consumer:   consumer,
		ingest:     ingest,
		logger:     logger,
		maxRetries: 5,
		backoff:    time.Second,
	}
}

func (b *Bridge) Run(ctx context.Context) error {
	for {
		msg, err := b.consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.backoff):
			}
			continue
		}
		b.handle(ctx, msg)
	}
}

// handle resolves one record in place: published, dropped as invalid, or
// dropped after exhausting retries. It returns only once the record's offset
// is safe to commit or the context is cancelled.
func (b *Bridge) handle(ctx context.Context, msg kafka.Message) {
	var params usecase.IngestEventParams
	if err := json.Unmarshal(msg.Value, &params); err != nil {
		// Not our record shape (or corrupt). Commit and move on.
		b.logger.Error("failed to unmarshal ingest record", "error", err)
		b.commit(ctx, msg)
		return
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * b.backoff
			b.logger.Info("retrying publish", "attempt", attempt, "max", b.maxRetries, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		res, err := b.ingest.Execute(ctx, params)
		if err == nil {
			b.commit(ctx, msg)
			b.logger.Info("event bridged", "event_id", res.EventID, "stream_id", res.StreamID)
			return
		}
		if errors.Is(err, usecase.ErrInvalidInput) {
			b.logger.Error("dropping invalid ingest record", "error", err)
			b.commit(ctx, msg)
			return
		}

		b.logger.Error("failed to publish ingest record", "error", err)
		if attempt >= b.maxRetries {
			b.logger.Error("dropping record after retries", "retries", b.maxRetries, "error", err)
			b.commit(ctx, msg)
			return
		}
	}
}

func (b *Bridge) commit(ctx context.Context, msg kafka.Message) {
	if err := b.consumer.CommitMessages(ctx, msg); err != nil {
		b.logger.Error("failed to commit kafka message", "error", err)
	}
}
