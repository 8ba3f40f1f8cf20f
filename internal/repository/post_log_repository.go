package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/postflow/internal/models"
)

type PostLogRepository interface {
	Create(ctx context.Context, pl *models.PostLog) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostLog, error)
}

type postLogRepository struct {
	db *sql.DB
}

func NewPostLogRepository(db *sql.DB) PostLogRepository {
	return &postLogRepository{db: db}
}

func (r *postLogRepository) Create(ctx context.Context, pl *models.PostLog) (int64, error) {
	query := `
		INSERT INTO post_logs (post_id, user_id, schedule_id, platform, attempt_id, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		pl.PostID,
		pl.UserID,
		pl.ScheduleID,
		pl.Platform,
		pl.AttemptID,
		pl.Status,
		pl.Message,
	).Scan(&id)
	if err != nil {
		return 0, logged("post_log.create", err)
	}
	return id, nil
}

func (r *postLogRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostLog, error) {
	query := `
		SELECT id, post_id, user_id, schedule_id, platform, attempt_id, status, message, created_at
		FROM post_logs
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, logged("post_log.list", err)
	}
	defer rows.Close()

	var logs []*models.PostLog
	for rows.Next() {
		var pl models.PostLog
		err := rows.Scan(&pl.ID, &pl.PostID, &pl.UserID, &pl.ScheduleID, &pl.Platform, &pl.AttemptID, &pl.Status, &pl.Message, &pl.CreatedAt)
		if err != nil {
			return nil, logged("post_log.list", err)
		}
		logs = append(logs, &pl)
	}
	return logs, rows.Err()
}
