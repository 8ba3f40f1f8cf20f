package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type ScheduleRepository interface {
	Create(ctx context.Context, tx *sql.Tx, s *models.PostSchedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostSchedule, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error)
	ListActiveTimes(ctx context.Context, userID int64, platform string, from, to time.Time) ([]time.Time, error)
	SetMessageID(ctx context.Context, id int64, messageID string) error
	UpdateStatus(ctx context.Context, id int64, status string, errorMessage *string) error
	IncrementRetry(ctx context.Context, id int64) (int, error)
	CancelActive(ctx context.Context, postID int64, platform string) ([]*models.PostSchedule, error)
	FailStale(ctx context.Context, before time.Time, message string) ([]*models.PostSchedule, error)
}

type scheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, post_id, user_id, rule_id, platform, scheduled_at, status, message_id, retry_count, error_message, created_at, updated_at`

func scanSchedule(row rowScanner) (*models.PostSchedule, error) {
	var s models.PostSchedule
	err := row.Scan(
		&s.ID,
		&s.PostID,
		&s.UserID,
		&s.RuleID,
		&s.Platform,
		&s.ScheduledAt,
		&s.Status,
		&s.MessageID,
		&s.RetryCount,
		&s.ErrorMessage,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSchedules(op string, rows *sql.Rows) ([]*models.PostSchedule, error) {
	defer rows.Close()

	var schedules []*models.PostSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, logged(op, err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, logged(op, err)
	}
	return schedules, nil
}

func (r *scheduleRepository) Create(ctx context.Context, tx *sql.Tx, s *models.PostSchedule) (int64, error) {
	query := `
		INSERT INTO post_schedules (post_id, user_id, rule_id, platform, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	status := s.Status
	if status == "" {
		status = models.ScheduleStatusScheduled
	}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, s.PostID, s.UserID, s.RuleID, s.Platform, s.ScheduledAt, status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, s.PostID, s.UserID, s.RuleID, s.Platform, s.ScheduledAt, status).Scan(&id)
	}
	if err != nil {
		return 0, logged("schedule.create", err)
	}

	s.ID = id
	s.Status = status
	return id, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.PostSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM post_schedules WHERE id = $1`

	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("schedule.get", err)
	}
	return s, nil
}

func (r *scheduleRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM post_schedules WHERE post_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, logged("schedule.list", err)
	}
	return collectSchedules("schedule.list", rows)
}

// ListActiveTimes returns the delivery instants of the user's still-pending
// schedules for platform within [from, to].
func (r *scheduleRepository) ListActiveTimes(ctx context.Context, userID int64, platform string, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT scheduled_at
		FROM post_schedules
		WHERE user_id = $1 AND platform = $2 AND status = $3
			AND scheduled_at BETWEEN $4 AND $5
	`

	rows, err := r.db.QueryContext(ctx, query, userID, platform, models.ScheduleStatusScheduled, from, to)
	if err != nil {
		return nil, logged("schedule.active_times", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, logged("schedule.active_times", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *scheduleRepository) SetMessageID(ctx context.Context, id int64, messageID string) error {
	query := `UPDATE post_schedules SET message_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, messageID, time.Now(), id); err != nil {
		return logged("schedule.set_message_id", err)
	}
	return nil
}

func (r *scheduleRepository) UpdateStatus(ctx context.Context, id int64, status string, errorMessage *string) error {
	query := `
		UPDATE post_schedules
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, status, errorMessage, time.Now(), id); err != nil {
		return logged("schedule.update_status", err)
	}
	return nil
}

func (r *scheduleRepository) IncrementRetry(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE post_schedules
		SET retry_count = retry_count + 1,
			updated_at = $1
		WHERE id = $2
		RETURNING retry_count
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, time.Now(), id).Scan(&count); err != nil {
		return 0, logged("schedule.increment_retry", err)
	}
	return count, nil
}

// CancelActive cancels the pending schedules of a post, limited to one
// platform unless platform is empty, and returns the rows it cancelled.
func (r *scheduleRepository) CancelActive(ctx context.Context, postID int64, platform string) ([]*models.PostSchedule, error) {
	query := `
		UPDATE post_schedules
		SET status = $1,
			updated_at = $2
		WHERE post_id = $3 AND status = $4 AND ($5::text = '' OR platform = $5)
		RETURNING ` + scheduleColumns

	rows, err := r.db.QueryContext(ctx, query, models.ScheduleStatusCancelled, time.Now(), postID, models.ScheduleStatusScheduled, platform)
	if err != nil {
		return nil, logged("schedule.cancel_active", err)
	}
	return collectSchedules("schedule.cancel_active", rows)
}

// FailStale fails pending schedules that were due before the cutoff.
func (r *scheduleRepository) FailStale(ctx context.Context, before time.Time, message string) ([]*models.PostSchedule, error) {
	query := `
		UPDATE post_schedules
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE status = $4 AND scheduled_at < $5
		RETURNING ` + scheduleColumns

	rows, err := r.db.QueryContext(ctx, query, models.ScheduleStatusFailed, message, time.Now(), models.ScheduleStatusScheduled, before)
	if err != nil {
		return nil, logged("schedule.fail_stale", err)
	}
	return collectSchedules("schedule.fail_stale", rows)
}
