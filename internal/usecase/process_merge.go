package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cdp/internal/domain/event"
	"cdp/internal/domain/profile"
	"cdp/internal/domain/review"
	"cdp/internal/infrastructure/postgres"
	"cdp/internal/stream"

	"github.com/google/uuid"
)

// ProcessMergeRequest is the merge-processors handler. Auto-merges happen
// upstream of the merge-requests topic; here only the manual-review path
// does anything: one review record per request, flagging every candidate
// profile in the same transaction.
type ProcessMergeRequest struct {
	txManager postgres.Transactor
	reviews   review.Repository
	profiles  profile.Repository
	logger    *slog.Logger
}

func NewProcessMergeRequest(txManager postgres.Transactor, reviews review.Repository, profiles profile.Repository, logger *slog.Logger) *ProcessMergeRequest {
	return &ProcessMergeRequest{txManager: txManager, reviews: reviews, profiles: profiles, logger: logger}
}

func (uc *ProcessMergeRequest) Handle(ctx context.Context, e stream.Entry) error {
	req, err := event.DecodeMergeRequest(e.Fields)
	if err != nil {
		return stream.Permanent(fmt.Errorf("decode merge request: %w", err))
	}

	if !req.RequiresManualReview {
		uc.logger.Debug("merge request auto-resolved upstream", "brand_id", req.BrandID, "profiles", len(req.ProfileIDs))
		return nil
	}

	rec := &review.Review{
		ID:         uuid.New().String(),
		BrandID:    req.BrandID,
		ProfileIDs: req.ProfileIDs,
		Reason:     req.Reason,
		Status:     review.StatusOpen,
		CreatedAt:  time.Now().UTC(),
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.reviews.Create(txCtx, rec); err != nil {
			return err
		}
		return uc.profiles.MarkPendingReview(txCtx, req.ProfileIDs)
	})
	if err != nil {
		return fmt.Errorf("record manual review: %w", err)
	}

	uc.logger.Info("manual review queued", "review_id", rec.ID, "brand_id", rec.BrandID, "profiles", len(rec.ProfileIDs))
	return nil
}
