package models

import "time"

type Post struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Content      string     `db:"content" json:"content"`
	Platforms    []string   `db:"platforms" json:"platforms"`
	Status       string     `db:"status" json:"status"` // draft, scheduled, posting, posted, failed
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PostedAt     *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	OrderIndex   int        `db:"order_index" json:"order_index"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

// Editable reports whether content and platforms may still change.
func (p *Post) Editable() bool {
	switch p.Status {
	case PostStatusDraft, PostStatusScheduled, PostStatusFailed:
		return true
	}
	return false
}
