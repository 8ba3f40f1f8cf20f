package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/postflow/internal/models"
)

type PostMediaRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error
	NextDisplayOrder(ctx context.Context, postID int64) (int, error)
	RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error
}

type postMediaRepository struct {
	db *sql.DB
}

func NewPostMediaRepository(db *sql.DB) PostMediaRepository {
	return &postMediaRepository{db: db}
}

func (r *postMediaRepository) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	query := `
		INSERT INTO post_media (post_id, asset_id, display_order)
		VALUES ($1, $2, $3)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, pm.PostID, pm.AssetID, pm.DisplayOrder)
	} else {
		_, err = r.db.ExecContext(ctx, query, pm.PostID, pm.AssetID, pm.DisplayOrder)
	}
	if err != nil {
		return logged("post_media.create", err)
	}
	return nil
}

func (r *postMediaRepository) NextDisplayOrder(ctx context.Context, postID int64) (int, error) {
	query := `SELECT COALESCE(MAX(display_order) + 1, 0) FROM post_media WHERE post_id = $1`

	var next int
	if err := r.db.QueryRowContext(ctx, query, postID).Scan(&next); err != nil {
		return 0, logged("post_media.next_order", err)
	}
	return next, nil
}

func (r *postMediaRepository) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	query := `DELETE FROM post_media WHERE post_id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, postID)
	} else {
		_, err = r.db.ExecContext(ctx, query, postID)
	}
	if err != nil {
		return logged("post_media.remove", err)
	}
	return nil
}
