package models

import "time"

// ConnectedPlatform holds a user's OAuth credential for one platform.
// AccessToken and RefreshToken are stored encrypted.
type ConnectedPlatform struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Platform       string     `db:"platform" json:"platform"`
	AccountID      string     `db:"account_id" json:"account_id"`
	AccountName    string     `db:"account_name" json:"account_name"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	CredentialStatusConnected = "connected"
	CredentialStatusExpired   = "expired"
	CredentialStatusRevoked   = "revoked"
	CredentialStatusError     = "error"
)

func (c *ConnectedPlatform) Expired(now time.Time) bool {
	return c.TokenExpiresAt != nil && !c.TokenExpiresAt.After(now)
}
