package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maheshrc27/postflow/internal/models"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error)
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

func (r *mediaAssetRepository) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	query := `
		INSERT INTO media_assets (user_id, file_name, file_type, file_size, file_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, ma.UserID, ma.FileName, ma.FileType, ma.FileSize, ma.FileURL).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, ma.UserID, ma.FileName, ma.FileType, ma.FileSize, ma.FileURL).Scan(&id)
	}
	if err != nil {
		return 0, logged("media_asset.create", err)
	}

	ma.ID = id
	return id, nil
}

func (r *mediaAssetRepository) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	query := `
		SELECT id, user_id, file_name, file_type, file_size, file_url, created_at
		FROM media_assets
		WHERE id = $1
	`

	var ma models.MediaAsset
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ma.ID, &ma.UserID, &ma.FileName, &ma.FileType, &ma.FileSize, &ma.FileURL, &ma.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("media_asset.get", err)
	}
	return &ma, nil
}

// ListByPostID returns the post's assets in display order.
func (r *mediaAssetRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error) {
	query := `
		SELECT ma.id, ma.user_id, ma.file_name, ma.file_type, ma.file_size, ma.file_url, ma.created_at
		FROM media_assets ma
		JOIN post_media pm ON pm.asset_id = ma.id
		WHERE pm.post_id = $1
		ORDER BY pm.display_order, ma.id
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, logged("media_asset.list", err)
	}
	defer rows.Close()

	var assets []*models.MediaAsset
	for rows.Next() {
		var ma models.MediaAsset
		if err := rows.Scan(&ma.ID, &ma.UserID, &ma.FileName, &ma.FileType, &ma.FileSize, &ma.FileURL, &ma.CreatedAt); err != nil {
			return nil, logged("media_asset.list", err)
		}
		assets = append(assets, &ma)
	}
	return assets, rows.Err()
}
