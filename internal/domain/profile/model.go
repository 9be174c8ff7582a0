package profile

import (
	"context"
	"encoding/json"
	"time"
)

type Profile struct {
	ID             string          `json:"id"`
	BrandID        string          `json:"brand_id"`
	Attributes     json.RawMessage `json:"attributes"`
	PendingReview  bool            `json:"pending_review"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Repository interface {
	TouchLastActivity(ctx context.Context, id string, at time.Time) error
	MarkPendingReview(ctx context.Context, ids []string) error
}
