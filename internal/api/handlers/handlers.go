// Package handlers implements the Gateway's inbound HTTP surface: a single
// dependency-holding Handlers type with one method per route, registered by
// NewRouter.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/api"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/metrics"
	"github.com/openrelay/gatewaysuite/internal/pipeline"
	"github.com/openrelay/gatewaysuite/internal/ratelimit"
	"github.com/openrelay/gatewaysuite/internal/reqctx"
	"github.com/openrelay/gatewaysuite/internal/taskqueue"
	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Handlers holds every dependency the gateway's routes need.
type Handlers struct {
	Orchestrator *pipeline.Orchestrator
	Limiter      ratelimit.Limiter
	Queue        taskqueue.Queue
	ToolHub      contracts.ToolHubClient
	Tuning       config.TuningConfig
	Version      string
	StartedAt    time.Time
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}

	if !h.allow(r) {
		api.WriteError(w, gatewayerr.RateLimited("rate limit exceeded"))
		return
	}

	resp, err := h.Orchestrator.ProcessChat(r.Context(), req)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// ChatCompletionsStream handles POST /v1/chat/completions/stream: provider
// deltas are relayed as newline-delimited {"delta":"..."} chunks in arrival
// order, terminated by the literal [DONE] line. A mid-stream failure emits
// one final error chunk before closing; the pipeline's Post stage runs
// best-effort after closure on the accumulated text.
func (h *Handlers) ChatCompletionsStream(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		api.WriteError(w, gatewayerr.InvalidRequest("messages must not be empty"))
		return
	}

	if !h.allow(r) {
		api.WriteError(w, gatewayerr.RateLimited("rate limit exceeded"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	emit := func(delta string) error {
		if err := enc.Encode(models.StreamDelta{Delta: delta}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := h.Orchestrator.ProcessChatStream(r.Context(), req, emit); err != nil {
		log.Warn().Err(err).Msg("stream failed mid-flight")
		_ = enc.Encode(models.StreamDelta{Error: err.Error()})
	}
	fmt.Fprintln(w, "[DONE]")
	if flusher != nil {
		flusher.Flush()
	}
}

// Models handles GET /v1/models.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	ids := []string{
		"local/default",
		"openrouter/toolcall",
		"openrouter/vision",
		"openrouter/explicit",
		"openrouter/coder",
	}
	data := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]string{"id": id, "object": "model"})
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

// Tools handles GET /v1/tools: proxies the Tool Hub's own schema listing.
func (h *Handlers) Tools(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	tools, err := h.ToolHub.ListTools(ctx)
	if err != nil {
		api.WriteError(w, gatewayerr.UpstreamFailure("tool hub unreachable", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"tools": tools})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.Version,
		"metrics": "/metrics",
		"rate_limit": map[string]int{
			"per_min": h.Tuning.RateLimitPerMin,
			"burst":   h.Tuning.RateLimitBurst,
		},
		"timeout": map[string]int{
			"pipeline_seconds": h.Tuning.PipelineTimeoutSeconds,
		},
		"task_worker": map[string]int{
			"max_retries": h.Tuning.TaskMaxRetries,
			"max_depth":   h.Tuning.TaskMaxDepth,
		},
	})
}

// EnqueueTask handles POST /tasks/enqueue.
func (h *Handlers) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	var req models.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}

	task := models.Task{ID: uuid.NewString(), Payload: req.Payload, Depth: req.Depth}
	status, err := h.Queue.Enqueue(r.Context(), task, h.Tuning.TaskMaxDepth)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("enqueue failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, models.EnqueueResponse{TaskID: task.ID, Status: status})
}

// TasksDLQ handles GET /tasks/dlq?limit=N.
func (h *Handlers) TasksDLQ(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.Queue.DeadLetters(r.Context(), limit)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("dlq read failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *Handlers) allow(r *http.Request) bool {
	if h.Limiter == nil {
		return true
	}
	key := ratelimit.KeyFor(reqctx.UserID(r.Context()))
	allowed, err := h.Limiter.Allow(r.Context(), key, h.Tuning.RateLimitPerMin, h.Tuning.RateLimitBurst)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter error, failing open")
		return true
	}
	if !allowed {
		metrics.RateLimitedTotal.Inc()
	}
	return allowed
}
