package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, bool, error)
	UpdateTimezone(ctx context.Context, id int64, timezone string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	var user models.User
	query := "SELECT id, name, email, profile_picture, timezone, created_at, updated_at FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.ProfilePicture,
		&user.Timezone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, logged("user.get", err)
	}
	return &user, true, nil
}

func (r *userRepository) UpdateTimezone(ctx context.Context, id int64, timezone string) error {
	query := `UPDATE users SET timezone = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, timezone, time.Now(), id); err != nil {
		return logged("user.update_timezone", err)
	}
	return nil
}
