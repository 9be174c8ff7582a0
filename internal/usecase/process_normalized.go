package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"cdp/internal/domain/event"
	"cdp/internal/domain/profile"
	"cdp/internal/stream"
)

// NormalizedExporter forwards a normalized event to an external sink. Export
// failures never fail the handler; the stream, not the sink, is the system of
// record.
type NormalizedExporter interface {
	Export(ctx context.Context, ev event.NormalizedEvent) error
}

// ProcessNormalizedEvent is the event-processors handler: it keeps the
// referenced profile's last-activity marker current. Feature and prediction
// rebuild triggers hang off this handler later.
type ProcessNormalizedEvent struct {
	profiles profile.Repository
	exporter NormalizedExporter // optional
	logger   *slog.Logger
}

func NewProcessNormalizedEvent(profiles profile.Repository, exporter NormalizedExporter, logger *slog.Logger) *ProcessNormalizedEvent {
	return &ProcessNormalizedEvent{profiles: profiles, exporter: exporter, logger: logger}
}

func (uc *ProcessNormalizedEvent) Handle(ctx context.Context, e stream.Entry) error {
	ev, err := event.DecodeNormalizedEvent(e.Fields)
	if err != nil {
		return stream.Permanent(fmt.Errorf("decode normalized event: %w", err))
	}

	if ev.ProfileID != "" {
		if err := uc.profiles.TouchLastActivity(ctx, ev.ProfileID, ev.Timestamp); err != nil {
			return fmt.Errorf("touch profile %s: %w", ev.ProfileID, err)
		}
	}

	if uc.exporter != nil {
		if err := uc.exporter.Export(ctx, ev); err != nil {
			uc.logger.Warn("firehose export failed", "event_id", ev.EventID, "error", err)
		}
	}

	return nil
}
