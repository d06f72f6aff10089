package taskqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/taskqueue"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

func TestMemQueue_EnqueueDequeue(t *testing.T) {
	q := taskqueue.NewMemQueue()
	ctx := context.Background()

	status, err := q.Enqueue(ctx, models.Task{Payload: map[string]interface{}{"x": 1}}, 5)
	require.NoError(t, err)
	assert.Equal(t, "queued", status)

	task, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, task.Payload["x"])
}

func TestMemQueue_DepthExceededGoesToDLQ(t *testing.T) {
	q := taskqueue.NewMemQueue()
	ctx := context.Background()

	status, err := q.Enqueue(ctx, models.Task{Depth: 10}, 5)
	require.NoError(t, err)
	assert.Equal(t, "dead_letter", status)

	dlq, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, taskqueue.ReasonDepthExceeded, dlq[0].Reason)
}

func TestMemQueue_RetriesExceededGoesToDLQ(t *testing.T) {
	q := taskqueue.NewMemQueue()
	ctx := context.Background()

	task := models.Task{ID: "t1", Retries: 2}
	require.NoError(t, q.Fail(ctx, task, 2))

	dlq, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, taskqueue.ReasonRetriesExceeded, dlq[0].Reason)
}

func TestMemQueue_FailBelowMaxRetriesRequeues(t *testing.T) {
	q := taskqueue.NewMemQueue()
	ctx := context.Background()

	task := models.Task{ID: "t2", Retries: 0}
	require.NoError(t, q.Fail(ctx, task, 3))

	dlq, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dlq)

	requeued, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, requeued.Retries)
}

func TestMemQueue_DequeueEmpty(t *testing.T) {
	q := taskqueue.NewMemQueue()
	_, ok, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}
