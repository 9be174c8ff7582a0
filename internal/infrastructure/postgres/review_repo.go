package postgres

import (
	"context"
	"fmt"

	"cdp/internal/domain/review"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

func (r *ReviewRepository) Create(ctx context.Context, rec *review.Review) error {
	const sql = `
		INSERT INTO manual_reviews (id, brand_id, profile_ids, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var exec interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		exec = tx
	}

	_, err := exec.Exec(ctx, sql,
		rec.ID, rec.BrandID, rec.ProfileIDs, rec.Reason, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert manual review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) ListOpen(ctx context.Context, limit int) ([]*review.Review, error) {
	const sql = `
		SELECT id, brand_id, profile_ids, reason, status, created_at
		FROM manual_reviews
		WHERE status = 'open'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query manual reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*review.Review
	for rows.Next() {
		rec := &review.Review{}
		if err := rows.Scan(&rec.ID, &rec.BrandID, &rec.ProfileIDs, &rec.Reason, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan manual review: %w", err)
		}
		reviews = append(reviews, rec)
	}

	return reviews, nil
}
