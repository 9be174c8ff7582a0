package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cdp/internal/domain/event"
)

// MessageSender is the slice of the Kafka producer the firehose needs.
type MessageSender interface {
	SendMessage(ctx context.Context, key, value []byte) error
}

// Firehose exports normalized events to Kafka for downstream analytics,
// keyed by profile id so one profile's events land on one partition.
type Firehose struct {
	sender MessageSender
}

func NewFirehose(sender MessageSender) *Firehose {
	return &Firehose{sender: sender}
}

type firehoseRecord struct {
	EventID     string            `json:"event_id"`
	BrandID     string            `json:"brand_id"`
	EventType   string            `json:"event_type"`
	ProfileID   string            `json:"profile_id,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

func (f *Firehose) Export(ctx context.Context, ev event.NormalizedEvent) error {
	value, err := json.Marshal(firehoseRecord{
		EventID:     ev.EventID,
		BrandID:     ev.BrandID,
		EventType:   ev.EventType,
		ProfileID:   ev.ProfileID,
		Identifiers: ev.Identifiers,
		Payload:     ev.NormalizedPayload,
		Timestamp:   ev.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal firehose record: %w", err)
	}

	key := []byte(ev.ProfileID)
	if len(key) == 0 {
		key = []byte(ev.EventID)
	}

	if err := f.sender.SendMessage(ctx, key, value); err != nil {
		return fmt.Errorf("send firehose record: %w", err)
	}
	return nil
}
