package taskqueue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// HandlerFunc processes one dequeued task. Returning an error requeues the
// task with retries incremented; exceeding MaxRetries moves it to the DLQ.
// A failed task is requeued and runs again, so a handler may see a payload
// it already partly processed.
type HandlerFunc func(ctx context.Context, task models.Task) error

// Worker polls a Queue and dispatches tasks by their payload "type" field.
type Worker struct {
	Queue      Queue
	Handlers   map[string]HandlerFunc
	MaxRetries int
	Visibility time.Duration
	PollEvery  time.Duration
}

// Run polls until ctx is cancelled. Dequeue errors back off by one poll
// interval rather than spinning.
func (w *Worker) Run(ctx context.Context) {
	poll := w.PollEvery
	if poll <= 0 {
		poll = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok, err := w.Queue.Dequeue(ctx, w.Visibility)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("task dequeue failed")
			w.sleep(ctx, poll)
			continue
		}
		if !ok {
			w.sleep(ctx, poll)
			continue
		}
		w.Handle(ctx, task)
	}
}

// Handle dispatches one task. Exposed so tests and synchronous callers can
// drive a task through the retry/DLQ path without running the poll loop.
func (w *Worker) Handle(ctx context.Context, task models.Task) {
	kind, _ := task.Payload["type"].(string)
	handler, ok := w.Handlers[kind]
	if !ok {
		log.Warn().Str("task_id", task.ID).Str("type", kind).Msg("no handler for task type")
		if err := w.Queue.Fail(ctx, task, w.MaxRetries); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to record task failure")
		}
		return
	}

	if err := handler(ctx, task); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID).Int("retries", task.Retries).Msg("task handler failed")
		if err := w.Queue.Fail(ctx, task, w.MaxRetries); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("failed to record task failure")
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
