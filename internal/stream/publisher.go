package stream

import (
	"context"
	"fmt"
	"log/slog"

	"cdp/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cdp_events_published_total",
	Help: "The total number of envelopes appended per topic",
}, []string{"topic"})

// Publisher serializes typed envelopes and appends them to their topic,
// passing the topic's retention bound on every append. Append failures are
// returned to the caller; the ingestion path decides whether they are fatal
// to the request.
type Publisher struct {
	log    Log
	logger *slog.Logger
}

func NewPublisher(log Log, logger *slog.Logger) *Publisher {
	return &Publisher{log: log, logger: logger}
}

func (p *Publisher) PublishRawEvent(ctx context.Context, ev event.RawEvent) (string, error) {
	return p.publish(ctx, TopicRawEvents, ev.Fields())
}

func (p *Publisher) PublishNormalizedEvent(ctx context.Context, ev event.NormalizedEvent) (string, error) {
	return p.publish(ctx, TopicNormalizedEvents, ev.Fields())
}

func (p *Publisher) PublishMergeRequest(ctx context.Context, req event.MergeRequest) (string, error) {
	return p.publish(ctx, TopicMergeRequests, req.Fields())
}

func (p *Publisher) PublishPredictionRequest(ctx context.Context, req event.PredictionRequest) (string, error) {
	return p.publish(ctx, TopicPredictionRequests, req.Fields())
}

func (p *Publisher) publish(ctx context.Context, t Topic, fields map[string]string) (string, error) {
	id, err := p.log.Append(ctx, t.Key, fields, t.MaxLen)
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", t.Key, err)
	}
	eventsPublished.WithLabelValues(t.Key).Inc()
	p.logger.Debug("envelope published", "topic", t.Key, "id", id)
	return id, nil
}
