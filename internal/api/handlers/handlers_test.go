package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/api/handlers"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/taskqueue"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

type fakeLimiter struct{ allowed bool }

func (f fakeLimiter) Allow(ctx context.Context, key string, ratePerMin, burst int) (bool, error) {
	return f.allowed, nil
}

type fakeToolHub struct{}

func (fakeToolHub) ListTools(ctx context.Context) ([]models.ToolDef, error) {
	return []models.ToolDef{{Type: "function", Function: models.ToolFunction{Name: "echo"}}}, nil
}

func (fakeToolHub) Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error) {
	return models.ToolResult{Success: true}, nil
}

func newHandlers(t *testing.T, allowed bool) *handlers.Handlers {
	t.Helper()
	return &handlers.Handlers{
		Orchestrator: nil,
		Limiter:      fakeLimiter{allowed: allowed},
		Queue:        taskqueue.NewMemQueue(),
		ToolHub:      fakeToolHub{},
		Tuning:       config.TuningConfig{RateLimitPerMin: 60, RateLimitBurst: 10, TaskMaxDepth: 5},
		Version:      "test-version",
	}
}

func TestHealth_ReportsVersionAndTuning(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
}

func TestModels_ListsKnownModelIDs(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.Models(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data)
}

func TestTools_ProxiesToolHubSchema(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	rec := httptest.NewRecorder()
	h.Tools(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo")
}

func TestChatCompletions_RateLimited(t *testing.T) {
	h := newHandlers(t, false)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestChatCompletions_MalformedBodyRejected(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`not-json`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestEnqueueTask_ReturnsQueuedStatus(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodPost, "/tasks/enqueue", strings.NewReader(`{"payload":{"x":1}}`))
	rec := httptest.NewRecorder()
	h.EnqueueTask(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.EnqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
}

func TestEnqueueTask_MalformedBodyRejected(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodPost, "/tasks/enqueue", strings.NewReader(`not-json`))
	rec := httptest.NewRecorder()
	h.EnqueueTask(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasksDLQ_EmptyByDefault(t *testing.T) {
	h := newHandlers(t, true)
	req := httptest.NewRequest(http.MethodGet, "/tasks/dlq", nil)
	rec := httptest.NewRecorder()
	h.TasksDLQ(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []models.DeadLetter `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Entries)
}

func TestTasksDLQ_AfterDepthExceeded(t *testing.T) {
	h := newHandlers(t, true)

	enqueueReq := httptest.NewRequest(http.MethodPost, "/tasks/enqueue", strings.NewReader(`{"payload":{},"depth":10}`))
	enqueueRec := httptest.NewRecorder()
	h.EnqueueTask(enqueueRec, enqueueReq)
	require.Equal(t, http.StatusOK, enqueueRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/tasks/dlq", nil)
	rec := httptest.NewRecorder()
	h.TasksDLQ(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []models.DeadLetter `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
}
