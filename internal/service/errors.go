package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maheshrc27/postflow/pkg/utils"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrTransactionConflict  = errors.New("credit balance changed concurrently, retry the operation")
	ErrPlatformNotConnected = errors.New("not connected")
	ErrCredentialExpired    = errors.New("credential expired")
	ErrQuotaExceeded        = errors.New("monthly platform quota exceeded")
	ErrContentRejected      = errors.New("content rejected")
	ErrUpstreamTimeout      = utils.ErrUpstreamTimeout
)

// ValidationError is bad caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Failure stages recorded on an Attempt.
const (
	StageQueueNotConfigured = "queue_not_configured"
	StageQueueRejected      = "queue_rejected"
	StagePersist            = "persist"
)

// Attempt is the outcome of registering one platform of a schedule call.
type Attempt struct {
	Platform   string `json:"platform"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (a Attempt) Succeeded() bool {
	return a.Error == ""
}

// BatchError is returned when every platform of a schedule call failed.
type BatchError struct {
	PostID   int64
	Attempts []Attempt
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", a.Platform, a.Stage, a.Error))
	}
	return fmt.Sprintf("scheduling post %d failed on every platform: %s", e.PostID, strings.Join(parts, "; "))
}
