package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, postID int64, status string, errorMessage *string) error
	MarkScheduled(ctx context.Context, postID int64, platforms []string, scheduledAt time.Time) error
	MarkPosted(ctx context.Context, postID int64, postedAt time.Time) error
	Reorder(ctx context.Context, userID int64, postIDs []int64) error
	FailStuckPosting(ctx context.Context, before time.Time, message string) ([]*models.Post, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content, platforms, status, scheduled_at, posted_at, error_message, order_index, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Content,
		pq.Array(&post.Platforms),
		&post.Status,
		&post.ScheduledAt,
		&post.PostedAt,
		&post.ErrorMessage,
		&post.OrderIndex,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Create appends the post to the end of the user's ordering.
func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, platforms, status, order_index)
		VALUES ($1, $2, $3, $4, COALESCE((SELECT MAX(order_index) + 1 FROM posts WHERE user_id = $1), 0))
		RETURNING id, order_index
	`

	status := post.Status
	if status == "" {
		status = models.PostStatusDraft
	}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Content, pq.Array(post.Platforms), status).Scan(&post.ID, &post.OrderIndex)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Content, pq.Array(post.Platforms), status).Scan(&post.ID, &post.OrderIndex)
	}
	if err != nil {
		return 0, logged("post.create", err)
	}

	post.Status = status
	return post.ID, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("post.get", err)
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY order_index, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, logged("post.list", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, logged("post.list", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, logged("post.list", err)
	}
	return posts, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, logged("post.check", err)
	}
	return result == 1, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET content = $1,
			platforms = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, post.Content, pq.Array(post.Platforms), time.Now(), post.ID)
	if err != nil {
		return logged("post.update", err)
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, postID int64, status string, errorMessage *string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, errorMessage, time.Now(), postID)
	if err != nil {
		return logged("post.update_status", err)
	}
	return nil
}

func (r *postRepository) MarkScheduled(ctx context.Context, postID int64, platforms []string, scheduledAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			platforms = $2,
			scheduled_at = $3,
			error_message = NULL,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, pq.Array(platforms), scheduledAt, time.Now(), postID)
	if err != nil {
		return logged("post.mark_scheduled", err)
	}
	return nil
}

func (r *postRepository) MarkPosted(ctx context.Context, postID int64, postedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			posted_at = $2,
			error_message = NULL,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPosted, postedAt, time.Now(), postID)
	if err != nil {
		return logged("post.mark_posted", err)
	}
	return nil
}

// Reorder sets order_index to each post's position in postIDs.
func (r *postRepository) Reorder(ctx context.Context, userID int64, postIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return logged("post.reorder", err)
	}
	defer tx.Rollback()

	query := `UPDATE posts SET order_index = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	now := time.Now()
	for i, id := range postIDs {
		result, err := tx.ExecContext(ctx, query, i, now, id, userID)
		if err != nil {
			return logged("post.reorder", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return logged("post.reorder", err)
		}
		if affected == 0 {
			return ErrNoRowsAffected
		}
	}

	if err := tx.Commit(); err != nil {
		return logged("post.reorder", err)
	}
	return nil
}

// FailStuckPosting moves posts that have sat in posting since before the
// cutoff to failed and returns them.
func (r *postRepository) FailStuckPosting(ctx context.Context, before time.Time, message string) ([]*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE status = $4 AND updated_at < $5
		RETURNING ` + postColumns

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusFailed, message, time.Now(), models.PostStatusPosting, before)
	if err != nil {
		return nil, logged("post.fail_stuck", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, logged("post.fail_stuck", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return logged("post.remove", err)
	}
	return nil
}
