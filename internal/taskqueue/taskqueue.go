// Package taskqueue implements the asynchronous task queue + DLQ:
// LPUSH/RPOP FIFO with depth/retries bounding. Dequeue removes the task
// from the queue and stamps VisibleAt on the returned copy only; a task
// that is dequeued and never passed to Fail is not re-delivered. Backed by github.com/redis/go-redis/v9 list operations when
// configured, falling back to an in-process sync.Mutex-guarded slice
// otherwise.
package taskqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Reasons a task is moved to the dead-letter queue.
const (
	ReasonRetriesExceeded = "retries_exceeded"
	ReasonDepthExceeded   = "depth_exceeded"
)

// Queue is the storage boundary for tasks and their dead-letter queue.
type Queue interface {
	Enqueue(ctx context.Context, task models.Task, maxDepth int) (status string, err error)
	Dequeue(ctx context.Context, visibilityTimeout time.Duration) (models.Task, bool, error)
	Fail(ctx context.Context, task models.Task, maxRetries int) error
	DeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error)
}

const (
	keyQueue = "taskqueue:queue"
	keyDLQ   = "taskqueue:dlq"
)

// RedisQueue implements Queue over Redis lists.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task models.Task, maxDepth int) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Depth > maxDepth {
		return q.deadLetter(ctx, task, ReasonDepthExceeded)
	}
	task.VisibleAt = time.Now().Unix()
	body, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, keyQueue, body).Err(); err != nil {
		return "", err
	}
	return "queued", nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, visibilityTimeout time.Duration) (models.Task, bool, error) {
	raw, err := q.client.RPop(ctx, keyQueue).Result()
	if err == redis.Nil {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, err
	}
	var task models.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return models.Task{}, false, err
	}
	task.VisibleAt = time.Now().Add(visibilityTimeout).Unix()
	return task, true, nil
}

func (q *RedisQueue) Fail(ctx context.Context, task models.Task, maxRetries int) error {
	task.Retries++
	if task.Retries > maxRetries {
		_, err := q.deadLetter(ctx, task, ReasonRetriesExceeded)
		return err
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, keyQueue, body).Err()
}

func (q *RedisQueue) deadLetter(ctx context.Context, task models.Task, reason string) (string, error) {
	dl := models.DeadLetter{Task: task, Reason: reason}
	body, err := json.Marshal(dl)
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, keyDLQ, body).Err(); err != nil {
		return "", err
	}
	return "dead_letter", nil
}

func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	raws, err := q.client.LRange(ctx, keyDLQ, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl models.DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err == nil {
			out = append(out, dl)
		}
	}
	return out, nil
}

// MemQueue is the in-process fallback.
type MemQueue struct {
	mu      sync.Mutex
	pending []models.Task
	dlq     []models.DeadLetter
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(_ context.Context, task models.Task, maxDepth int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Depth > maxDepth {
		q.dlq = append(q.dlq, models.DeadLetter{Task: task, Reason: ReasonDepthExceeded})
		return "dead_letter", nil
	}
	task.VisibleAt = time.Now().Unix()
	q.pending = append(q.pending, task)
	return "queued", nil
}

func (q *MemQueue) Dequeue(_ context.Context, visibilityTimeout time.Duration) (models.Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return models.Task{}, false, nil
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	task.VisibleAt = time.Now().Add(visibilityTimeout).Unix()
	return task, true, nil
}

func (q *MemQueue) Fail(_ context.Context, task models.Task, maxRetries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task.Retries++
	if task.Retries > maxRetries {
		q.dlq = append(q.dlq, models.DeadLetter{Task: task, Reason: ReasonRetriesExceeded})
		return nil
	}
	q.pending = append(q.pending, task)
	return nil
}

func (q *MemQueue) DeadLetters(_ context.Context, limit int) ([]models.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.dlq) {
		limit = len(q.dlq)
	}
	out := make([]models.DeadLetter, limit)
	copy(out, q.dlq[:limit])
	return out, nil
}
