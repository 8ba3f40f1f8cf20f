package repository

import (
	"context"
	"database/sql"
	"errors"
)

// UsageRepository counts successful publishes per user, platform and month
// ("2006-01").
type UsageRepository interface {
	Get(ctx context.Context, userID int64, platform, month string) (int, error)
	Increment(ctx context.Context, userID int64, platform, month string) (int, error)
}

type usageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Get(ctx context.Context, userID int64, platform, month string) (int, error) {
	query := `SELECT count FROM platform_usage WHERE user_id = $1 AND platform = $2 AND month = $3`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, platform, month).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, logged("usage.get", err)
	}
	return count, nil
}

func (r *usageRepository) Increment(ctx context.Context, userID int64, platform, month string) (int, error) {
	query := `
		INSERT INTO platform_usage (user_id, platform, month, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, platform, month)
		DO UPDATE SET count = platform_usage.count + 1
		RETURNING count
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, platform, month).Scan(&count); err != nil {
		return 0, logged("usage.increment", err)
	}
	return count, nil
}
