package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type ConnectedPlatformRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ConnectedPlatform, error)
	GetConnected(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedPlatform, error)
	SetToken(ctx context.Context, id int64, cp *models.ConnectedPlatform) error
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type connectedPlatformRepository struct {
	db *sql.DB
}

func NewConnectedPlatformRepository(db *sql.DB) ConnectedPlatformRepository {
	return &connectedPlatformRepository{db: db}
}

const connectedPlatformColumns = `id, user_id, platform, account_id, account_name, access_token, refresh_token, token_expires_at, status, created_at, updated_at`

func scanConnectedPlatform(row rowScanner) (*models.ConnectedPlatform, error) {
	var cp models.ConnectedPlatform
	err := row.Scan(
		&cp.ID,
		&cp.UserID,
		&cp.Platform,
		&cp.AccountID,
		&cp.AccountName,
		&cp.AccessToken,
		&cp.RefreshToken,
		&cp.TokenExpiresAt,
		&cp.Status,
		&cp.CreatedAt,
		&cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *connectedPlatformRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.ConnectedPlatform, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, logged(op, err)
	}
	defer rows.Close()

	var accounts []*models.ConnectedPlatform
	for rows.Next() {
		cp, err := scanConnectedPlatform(rows)
		if err != nil {
			return nil, logged(op, err)
		}
		accounts = append(accounts, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, logged(op, err)
	}
	return accounts, nil
}

func (r *connectedPlatformRepository) GetByID(ctx context.Context, id int64) (*models.ConnectedPlatform, error) {
	query := `SELECT ` + connectedPlatformColumns + ` FROM connected_platforms WHERE id = $1`

	cp, err := scanConnectedPlatform(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("connected_platform.get", err)
	}
	return cp, nil
}

// GetConnected returns the most recently updated connected credential of the
// user for platform.
func (r *connectedPlatformRepository) GetConnected(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error) {
	query := `
		SELECT ` + connectedPlatformColumns + `
		FROM connected_platforms
		WHERE user_id = $1 AND platform = $2 AND status = $3
		ORDER BY updated_at DESC
		LIMIT 1
	`

	cp, err := scanConnectedPlatform(r.db.QueryRowContext(ctx, query, userID, platform, models.CredentialStatusConnected))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("connected_platform.get_connected", err)
	}
	return cp, nil
}

func (r *connectedPlatformRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error) {
	query := `SELECT ` + connectedPlatformColumns + ` FROM connected_platforms WHERE user_id = $1 ORDER BY platform, id`
	return r.list(ctx, "connected_platform.list", query, userID)
}

// ListExpiring returns connected credentials with a refresh token whose
// access token expires before the cutoff.
func (r *connectedPlatformRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.ConnectedPlatform, error) {
	query := `
		SELECT ` + connectedPlatformColumns + `
		FROM connected_platforms
		WHERE status = $1 AND refresh_token <> '' AND token_expires_at IS NOT NULL AND token_expires_at < $2
	`
	return r.list(ctx, "connected_platform.list_expiring", query, models.CredentialStatusConnected, before)
}

// SetToken stores refreshed tokens. Empty fields keep their current value.
func (r *connectedPlatformRepository) SetToken(ctx context.Context, id int64, cp *models.ConnectedPlatform) error {
	query := `
		UPDATE connected_platforms
		SET
			access_token = COALESCE(NULLIF($1, ''), access_token),
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			token_expires_at = COALESCE($3, token_expires_at),
			status = $4,
			updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query, cp.AccessToken, cp.RefreshToken, cp.TokenExpiresAt, models.CredentialStatusConnected, time.Now(), id)
	if err != nil {
		return logged("connected_platform.set_token", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return logged("connected_platform.set_token", err)
	}
	if affected != 1 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *connectedPlatformRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE connected_platforms SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return logged("connected_platform.update_status", err)
	}
	return nil
}
