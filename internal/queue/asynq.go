package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/pkg/logger"
	"github.com/rs/zerolog"
)

const DefaultAsynqQueue = "dispatch"

// AsynqPublisher keeps deferred dispatches in Redis. The Worker in this
// package consumes them in the same process.
type AsynqPublisher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	retries   int
	log       zerolog.Logger
}

func NewAsynqPublisher(redis asynq.RedisConnOpt, queueName string, retries int) *AsynqPublisher {
	if queueName == "" {
		queueName = DefaultAsynqQueue
	}
	return &AsynqPublisher{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		queue:     queueName,
		retries:   retries,
		log:       logger.Component("asynq"),
	}
}

func (a *AsynqPublisher) Queue() string { return a.queue }

func (a *AsynqPublisher) Publish(ctx context.Context, msg DispatchMessage, delay time.Duration) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeDispatchPost, payload)
	info, err := a.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(a.retries),
		asynq.Queue(a.queue),
	)
	if err != nil {
		return "", fmt.Errorf("asynq enqueue: %w", err)
	}

	a.log.Debug().
		Int64("post_id", msg.PostID).
		Int64("schedule_id", msg.ScheduleID).
		Str("platform", msg.Platform).
		Str("task_id", info.ID).
		Dur("delay", delay).
		Msg("dispatch registered")

	return info.ID, nil
}

func (a *AsynqPublisher) Cancel(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	err := a.inspector.DeleteTask(a.queue, messageID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("asynq delete task: %w", err)
	}
	return nil
}

func (a *AsynqPublisher) Close() error {
	if err := a.inspector.Close(); err != nil {
		return err
	}
	return a.client.Close()
}
