// Package router implements the routing policy: selecting a (provider,
// model) pair for a chat request and calling it with retry. Two providers
// are registered: "local" (an Ollama-compatible /v1/chat/completions
// server) and "remote" (an OpenAI-compatible OpenRouter endpoint, same
// wire shape, different base URL and auth header).
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/metrics"
	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Decision is the (provider, model) pair the Routing Policy selected,
// together with the reason so callers can log/trace it.
type Decision struct {
	ProviderID string
	ModelID    string
	Reason     string
}

// Router holds the registered ProviderDriver set and the selection tables.
type Router struct {
	providers map[string]contracts.ModelProvider
	cfg       config.ProviderConfig
}

func New(cfg config.ProviderConfig, providers ...contracts.ModelProvider) *Router {
	r := &Router{providers: make(map[string]contracts.ModelProvider), cfg: cfg}
	for _, p := range providers {
		r.providers[p.ID()] = p
	}
	return r
}

func (r *Router) has(id string) bool {
	_, ok := r.providers[id]
	return ok
}

var (
	explicitPattern = regexp.MustCompile(`(?i)\b(nsfw|explicit|graphic violence|sexual content)\b`)
	visionPattern   = regexp.MustCompile(`(?i)\b(image|photo|picture|visual|diagram|see|look|view)\b|analyze.*image`)
	codingPattern   = regexp.MustCompile("(?i)```|\\b(def |class |import |function |public static|async def)\\b")
	toolsPattern    = regexp.MustCompile(`(?i)\b(call the|use the|invoke).{0,20}(tool|function)\b`)
)

// Select picks the (provider, model) pair given the request, the resolved
// tool list, and an optional force_model override.
func (r *Router) Select(req models.ChatRequest, tools []models.ToolDef) (Decision, error) {
	if fm := req.ForceModel; fm != "" {
		if strings.HasPrefix(fm, "local/") {
			return Decision{ProviderID: "local", ModelID: strings.TrimPrefix(fm, "local/"), Reason: "force_model"}, nil
		}
		return Decision{ProviderID: "remote", ModelID: fm, Reason: "force_model"}, nil
	}

	if !r.has("remote") {
		if r.has("local") {
			return Decision{ProviderID: "local", ModelID: r.cfg.DefaultLocalModel, Reason: "remote_unavailable"}, nil
		}
		return Decision{}, gatewayerr.NoProviderAvailable("no configured provider is reachable")
	}

	text := concatText(req.Messages)
	hasImage := hasImageAttachment(req.Messages)

	switch {
	case hasImage || visionPattern.MatchString(text):
		return Decision{ProviderID: "remote", ModelID: r.cfg.VisionModel, Reason: "vision"}, nil
	case explicitPattern.MatchString(text):
		return Decision{ProviderID: "remote", ModelID: r.cfg.ExplicitModel, Reason: "explicit"}, nil
	case codingPattern.MatchString(text):
		return Decision{ProviderID: "remote", ModelID: r.cfg.CoderModel, Reason: "coding"}, nil
	case len(tools) > 0 || toolsPattern.MatchString(text):
		return Decision{ProviderID: "remote", ModelID: r.cfg.ToolcallModel, Reason: "tools"}, nil
	default:
		return Decision{ProviderID: "remote", ModelID: r.cfg.ToolcallModel, Reason: "default"}, nil
	}
}

// Fallback returns the decision to retry with when d failed entirely.
func (r *Router) Fallback(d Decision) (Decision, error) {
	if d.ProviderID == "remote" && r.has("local") {
		return Decision{ProviderID: "local", ModelID: r.cfg.DefaultLocalModel, Reason: "fallback_local"}, nil
	}
	return Decision{}, gatewayerr.InternalError("no fallback available", nil)
}

func concatText(msgs []models.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Content)
		sb.WriteString(" ")
	}
	return sb.String()
}

func hasImageAttachment(msgs []models.ChatMessage) bool {
	for _, m := range msgs {
		for _, a := range m.Attachments {
			if a.Type == "image_url" {
				return true
			}
		}
	}
	return false
}

// retryableStatus is the status set eligible for exponential backoff.
var retryableStatus = map[int]bool{402: true, 408: true, 409: true, 429: true, 500: true, 502: true, 503: true, 504: true}

// StatusError carries an HTTP status code from a provider call so Call can
// classify it as retryable or permanent.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// ModelPriority is the ordered list of models to try for one provider
// before giving up on it entirely.
type ModelPriority []string

// Call invokes provider/model with exponential-backoff retry on the
// retryable status set.
func (r *Router) Call(ctx context.Context, providerID, modelID string, req models.ProviderChatRequest, callTimeout time.Duration) (models.ProviderChatResponse, error) {
	provider, ok := r.providers[providerID]
	if !ok {
		return models.ProviderChatResponse{}, gatewayerr.NoProviderAvailable(fmt.Sprintf("provider %q not configured", providerID))
	}
	req.Model = modelID

	var resp models.ProviderChatResponse
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = callTimeout

	operation := func() error {
		start := time.Now()
		var err error
		resp, err = provider.ChatCompletion(ctx, req)
		metrics.ProviderLatencyMs.WithLabelValues(providerID).Observe(float64(time.Since(start).Milliseconds()))
		if err == nil {
			return nil
		}
		if statusErr, ok := err.(*StatusError); ok && !retryableStatus[statusErr.Status] {
			return backoff.Permanent(err)
		}
		// network errors and retryable statuses both fall through to retry
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return models.ProviderChatResponse{}, err
	}
	return resp, nil
}

// Stream relays a streaming completion from provider/model through emit.
// Providers without a streaming driver fall back to a single-chunk stream:
// one blocking call, one emit with the whole text.
func (r *Router) Stream(ctx context.Context, providerID, modelID string, req models.ProviderChatRequest, emit func(delta string) error) (models.ProviderChatResponse, error) {
	provider, ok := r.providers[providerID]
	if !ok {
		return models.ProviderChatResponse{}, gatewayerr.NoProviderAvailable(fmt.Sprintf("provider %q not configured", providerID))
	}
	req.Model = modelID

	start := time.Now()
	defer func() {
		metrics.ProviderLatencyMs.WithLabelValues(providerID).Observe(float64(time.Since(start).Milliseconds()))
	}()

	if streamer, ok := provider.(contracts.StreamingProvider); ok {
		return streamer.ChatCompletionStream(ctx, req, emit)
	}

	resp, err := provider.ChatCompletion(ctx, req)
	if err != nil {
		return models.ProviderChatResponse{}, err
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		if err := emit(resp.Choices[0].Message.Content); err != nil {
			return models.ProviderChatResponse{}, err
		}
	}
	return resp, nil
}

// Observe extracts observation text for attachments by asking the local
// provider first and the remote vision model second. Both failing returns
// the last error; callers treat observation as best-effort enrichment.
func (r *Router) Observe(ctx context.Context, messages []models.ChatMessage) (string, error) {
	req := models.ProviderChatRequest{Messages: messages, Temperature: 0.2}

	attempts := []Decision{
		{ProviderID: "local", ModelID: r.cfg.DefaultLocalModel},
		{ProviderID: "remote", ModelID: r.cfg.VisionModel},
	}
	var lastErr error
	for _, d := range attempts {
		if !r.has(d.ProviderID) {
			continue
		}
		resp, err := r.Call(ctx, d.ProviderID, d.ModelID, req, 90*time.Second)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
			return resp.Choices[0].Message.Content, nil
		}
	}
	if lastErr == nil {
		lastErr = gatewayerr.NoProviderAvailable("no provider produced an observation")
	}
	return "", lastErr
}

// CallWithFallback tries each model in priority for providerID; on full
// exhaustion it returns an upstream failure carrying the last error.
func (r *Router) CallWithFallback(ctx context.Context, providerID string, priority ModelPriority, req models.ProviderChatRequest, callTimeout time.Duration) (models.ProviderChatResponse, string, error) {
	var lastErr error
	for _, model := range priority {
		resp, err := r.Call(ctx, providerID, model, req, callTimeout)
		if err == nil {
			return resp, model, nil
		}
		lastErr = err
		log.Warn().Str("provider", providerID).Str("model", model).Err(err).Msg("model attempt failed")
	}
	return models.ProviderChatResponse{}, "", gatewayerr.UpstreamFailure("all models failed", lastErr)
}
