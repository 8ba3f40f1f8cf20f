package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type CreditRepository interface {
	Get(ctx context.Context, userID int64) (*models.UserCredits, error)
	Init(ctx context.Context, userID int64, balance int, resetDate time.Time) error
	CompareAndSwap(ctx context.Context, userID int64, expected *models.UserCredits, newBalance int, newResetDate time.Time) (bool, error)
	Add(ctx context.Context, userID int64, amount int) error
}

type creditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) Get(ctx context.Context, userID int64) (*models.UserCredits, error) {
	query := `SELECT user_id, balance, last_reset_date, updated_at FROM user_credits WHERE user_id = $1`

	var c models.UserCredits
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.Balance, &c.LastResetDate, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("credit.get", err)
	}
	return &c, nil
}

// Init creates the ledger row if the user has none yet.
func (r *creditRepository) Init(ctx context.Context, userID int64, balance int, resetDate time.Time) error {
	query := `
		INSERT INTO user_credits (user_id, balance, last_reset_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, balance, resetDate); err != nil {
		return logged("credit.init", err)
	}
	return nil
}

// CompareAndSwap writes the new balance only if the row still holds the
// balance and reset date in expected. It reports whether the write happened.
func (r *creditRepository) CompareAndSwap(ctx context.Context, userID int64, expected *models.UserCredits, newBalance int, newResetDate time.Time) (bool, error) {
	query := `
		UPDATE user_credits
		SET balance = $1,
			last_reset_date = $2,
			updated_at = $3
		WHERE user_id = $4 AND balance = $5 AND last_reset_date = $6
	`
	result, err := r.db.ExecContext(ctx, query, newBalance, newResetDate, time.Now(), userID, expected.Balance, expected.LastResetDate)
	if err != nil {
		return false, logged("credit.cas", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, logged("credit.cas", err)
	}
	return affected == 1, nil
}

// Add credits amount back atomically.
func (r *creditRepository) Add(ctx context.Context, userID int64, amount int) error {
	query := `UPDATE user_credits SET balance = balance + $1, updated_at = $2 WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, amount, time.Now(), userID)
	if err != nil {
		return logged("credit.add", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
