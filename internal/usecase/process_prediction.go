package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"cdp/internal/domain/event"
	"cdp/internal/stream"
)

// ProcessPredictionRequest is the prediction-processors handler. The
// computation is not implemented yet; the (profile id, brand id, request
// kind) contract is stable so the ML service can slot in behind it.
type ProcessPredictionRequest struct {
	logger *slog.Logger
}

func NewProcessPredictionRequest(logger *slog.Logger) *ProcessPredictionRequest {
	return &ProcessPredictionRequest{logger: logger}
}

func (uc *ProcessPredictionRequest) Handle(ctx context.Context, e stream.Entry) error {
	req, err := event.DecodePredictionRequest(e.Fields)
	if err != nil {
		return stream.Permanent(fmt.Errorf("decode prediction request: %w", err))
	}

	uc.logger.Info("prediction request received",
		"profile_id", req.ProfileID, "brand_id", req.BrandID, "request_type", req.RequestType)
	return nil
}
