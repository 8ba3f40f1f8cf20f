package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/pkg/utils"
)

// Dispatcher runs one delivered dispatch to completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchMessage) error
}

type Worker struct {
	dispatcher Dispatcher
}

func NewWorker(d Dispatcher) *Worker {
	return &Worker{dispatcher: d}
}

// HandleDispatchTask is registered with the asynq mux. Only upstream timeouts
// are handed back for retry; every other failure is already recorded as a
// terminal state and must not be redelivered.
func (w *Worker) HandleDispatchTask(ctx context.Context, task *asynq.Task) error {
	var msg DispatchMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("decode dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.dispatcher.Dispatch(ctx, msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, utils.ErrUpstreamTimeout) {
		return err
	}
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}
