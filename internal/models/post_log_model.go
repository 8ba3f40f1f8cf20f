package models

import "time"

// PostLog is the audit trail entry written for every dispatch run.
type PostLog struct {
	ID         int64     `db:"id" json:"id"`
	PostID     int64     `db:"post_id" json:"post_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ScheduleID *int64    `db:"schedule_id" json:"schedule_id,omitempty"`
	Platform   string    `db:"platform" json:"platform"`
	AttemptID  string    `db:"attempt_id" json:"attempt_id"`
	Status     string    `db:"status" json:"status"`
	Message    string    `db:"message" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
