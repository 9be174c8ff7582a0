package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// TouchLastActivity moves the profile's last-activity marker forward. It is
// a no-op for an unknown profile id; the normalization service owns profile
// creation.
func (r *ProfileRepository) TouchLastActivity(ctx context.Context, id string, at time.Time) error {
	const sql = `
		UPDATE profiles
		SET last_activity_at = GREATEST(last_activity_at, $2), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.executor(ctx).Exec(ctx, sql, id, at)
	if err != nil {
		return fmt.Errorf("touch profile last activity: %w", err)
	}
	return nil
}

func (r *ProfileRepository) MarkPendingReview(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE profiles
		SET pending_review = TRUE, updated_at = NOW()
		WHERE id = ANY($1)
	`

	_, err := r.executor(ctx).Exec(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("mark profiles pending review: %w", err)
	}
	return nil
}

type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (r *ProfileRepository) executor(ctx context.Context) executor {
	if tx := GetTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}
