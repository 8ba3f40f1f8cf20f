// Package queue registers deferred dispatches with an external delivery
// queue and receives them back. Two backends exist: QStash, which calls the
// dispatch webhook over HTTP, and asynq, which runs the dispatch in-process
// from Redis.
package queue

import (
	"context"
	"errors"
	"time"
)

const TaskTypeDispatchPost = "dispatch:post"

var ErrQueueNotConfigured = errors.New("queue is not configured")

// DispatchMessage is the payload carried by every deferred delivery.
type DispatchMessage struct {
	PostID     int64  `json:"post_id"`
	Platform   string `json:"platform"`
	ScheduleID int64  `json:"schedule_id"`
}

// Publisher registers and retracts deferred deliveries.
type Publisher interface {
	// Publish schedules msg to be delivered after delay and returns the
	// queue's message id.
	Publish(ctx context.Context, msg DispatchMessage, delay time.Duration) (string, error)
	// Cancel retracts a message that has not been delivered yet. Unknown or
	// already delivered ids are not an error.
	Cancel(ctx context.Context, messageID string) error
}
