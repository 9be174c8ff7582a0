package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cdp/internal/domain/event"
	"cdp/internal/stream"

	"github.com/google/uuid"
)

// IngestEvent validates one incoming customer event and publishes it to the
// raw-events topic. A publish failure is returned to the HTTP caller as an
// ingestion failure; nothing is buffered locally.
type IngestEvent struct {
	publisher *stream.Publisher
}

func NewIngestEvent(publisher *stream.Publisher) *IngestEvent {
	return &IngestEvent{publisher: publisher}
}

type IngestEventParams struct {
	BrandID   string          `json:"brand_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type IngestEventResult struct {
	EventID  string `json:"event_id"`
	StreamID string `json:"stream_id"`
}

func (uc *IngestEvent) Execute(ctx context.Context, params IngestEventParams) (IngestEventResult, error) {
	if params.BrandID == "" || params.EventType == "" {
		return IngestEventResult{}, fmt.Errorf("brand_id and event_type are required: %w", ErrInvalidInput)
	}

	ev := event.RawEvent{
		EventID:   uuid.New().String(),
		BrandID:   params.BrandID,
		EventType: params.EventType,
		Payload:   params.Payload,
		Timestamp: time.Now().UTC(),
	}

	streamID, err := uc.publisher.PublishRawEvent(ctx, ev)
	if err != nil {
		return IngestEventResult{}, fmt.Errorf("publish raw event: %w", err)
	}

	return IngestEventResult{EventID: ev.EventID, StreamID: streamID}, nil
}
