package models

import "time"

// PostSchedule is one dispatch attempt of a post to a single platform.
type PostSchedule struct {
	ID           int64     `db:"id" json:"id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	RuleID       *int64    `db:"rule_id" json:"rule_id,omitempty"`
	Platform     string    `db:"platform" json:"platform"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status       string    `db:"status" json:"status"` // scheduled, executed, failed, cancelled
	MessageID    *string   `db:"message_id" json:"message_id,omitempty"`
	RetryCount   int       `db:"retry_count" json:"retry_count"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusExecuted  = "executed"
	ScheduleStatusFailed    = "failed"
	ScheduleStatusCancelled = "cancelled"
)

func (s *PostSchedule) Terminal() bool {
	return s.Status != ScheduleStatusScheduled
}

// ScheduleRule is a user's named recurring cadence.
type ScheduleRule struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Type      string    `db:"type" json:"type"` // daily, weekdays, weekends, custom
	Time      string    `db:"time" json:"time"` // HH:MM
	Days      []int64   `db:"days" json:"days,omitempty"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
