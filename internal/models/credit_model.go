package models

import "time"

// UserCredits is the per-user monthly scheduling balance.
type UserCredits struct {
	UserID        int64     `db:"user_id" json:"user_id"`
	Balance       int       `db:"balance" json:"balance"`
	LastResetDate time.Time `db:"last_reset_date" json:"last_reset_date"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
