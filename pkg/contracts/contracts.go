// Package contracts defines the gateway's view of its peer services as
// plain interfaces. Concrete HTTP implementations live in internal/clients;
// tests substitute fakes satisfying these interfaces directly.
package contracts

import (
	"context"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// IntentClient classifies user text into a family and routing hints.
type IntentClient interface {
	Classify(ctx context.Context, req models.ClassifyRequest) (models.ClassifyResponse, error)
	Route(ctx context.Context, req models.RouteRequest) (models.RouteResponse, error)
}

// MemoryClient retrieves and writes episodic memory.
type MemoryClient interface {
	Retrieve(ctx context.Context, userID, intent string, k int) (models.MemoryRetrieveResponse, error)
	Summary(ctx context.Context, userID string) (string, error)
	WriteCandidate(ctx context.Context, cand models.MemoryCandidate) (models.MemoryWriteResult, error)
}

// FeelingClient performs affect analysis, tone selection, prompt
// augmentation, and text critique.
type FeelingClient interface {
	Analyze(ctx context.Context, text string) (models.AffectRecord, error)
	Tone(ctx context.Context, affect models.AffectRecord) (models.ToneResponse, error)
	Augment(ctx context.Context, systemPrompt, templateID string) (models.AugmentResponse, error)
	Critique(ctx context.Context, text string, maxTokens int) (models.CritiqueResponse, error)
}

// DriveClient reads and updates a user's drive state and its derived policy.
type DriveClient interface {
	Get(ctx context.Context, userID string) (models.DriveState, error)
	Update(ctx context.Context, userID string, req models.DriveUpdateRequest) (models.DriveState, error)
	Policy(ctx context.Context, userID string) (models.DrivePolicy, error)
}

// PolicyClient applies and validates lane-specific guardrails.
type PolicyClient interface {
	Apply(ctx context.Context, req models.PolicyApplyRequest) (models.PolicyApplyResponse, error)
	Validate(ctx context.Context, req models.PolicyValidateRequest) (models.PolicyValidateResponse, error)
}

// ToolHubClient lists and executes tools for the Tool-Call Loop.
type ToolHubClient interface {
	ListTools(ctx context.Context) ([]models.ToolDef, error)
	Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error)
}

// TelemetryClient ingests structured log events and backs the cache.
type TelemetryClient interface {
	Log(ctx context.Context, event string, payload map[string]interface{}) (models.LogEventResponse, error)
	CacheGet(ctx context.Context, key string) (string, bool, error)
	CacheSet(ctx context.Context, key string, data interface{}, ttl int) error
}

// ModelProvider is one chat-completion backend (local or remote), the unit
// the Routing Policy selects between.
type ModelProvider interface {
	ID() string
	ChatCompletion(ctx context.Context, req models.ProviderChatRequest) (models.ProviderChatResponse, error)
}

// StreamingProvider is implemented by providers that can stream deltas.
// emit is called once per content chunk, in arrival order; the returned
// response carries the accumulated text and any trailing usage object.
type StreamingProvider interface {
	ChatCompletionStream(ctx context.Context, req models.ProviderChatRequest, emit func(delta string) error) (models.ProviderChatResponse, error)
}
