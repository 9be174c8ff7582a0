package review

import (
	"context"
	"time"
)

// Review is a manual-review request produced when an identity merge cannot be
// resolved automatically. ProfileIDs carries every candidate profile.
type Review struct {
	ID         string    `json:"id"`
	BrandID    string    `json:"brand_id"`
	ProfileIDs []string  `json:"profile_ids"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

const StatusOpen = "open"

type Repository interface {
	Create(ctx context.Context, r *Review) error
	ListOpen(ctx context.Context, limit int) ([]*Review, error)
}
