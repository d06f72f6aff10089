package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/pipeline"
	"github.com/openrelay/gatewaysuite/internal/router"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

const (
	assertEventuallyTimeout = 500 * time.Millisecond
	assertEventuallyTick    = 10 * time.Millisecond
)

type fakeIntent struct{}

func (fakeIntent) Classify(ctx context.Context, req models.ClassifyRequest) (models.ClassifyResponse, error) {
	return models.ClassifyResponse{}, nil
}

func (fakeIntent) Route(ctx context.Context, req models.RouteRequest) (models.RouteResponse, error) {
	return models.RouteResponse{Family: models.FamilyOpenEnded, Provider: models.ProviderLocal}, nil
}

type fakeMemory struct {
	mu      sync.Mutex
	written []models.MemoryCandidate
}

func (f *fakeMemory) Retrieve(ctx context.Context, userID, intent string, k int) (models.MemoryRetrieveResponse, error) {
	return models.MemoryRetrieveResponse{}, nil
}

func (f *fakeMemory) Summary(ctx context.Context, userID string) (string, error) {
	return "", nil
}

func (f *fakeMemory) WriteCandidate(ctx context.Context, cand models.MemoryCandidate) (models.MemoryWriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, cand)
	return models.MemoryWriteResult{Success: true}, nil
}

func (f *fakeMemory) snapshot() []models.MemoryCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MemoryCandidate, len(f.written))
	copy(out, f.written)
	return out
}

type fakeFeeling struct{}

func (fakeFeeling) Analyze(ctx context.Context, text string) (models.AffectRecord, error) {
	return models.AffectRecord{Sentiment: models.SentimentNeutral, Confidence: 0.5}, nil
}

func (fakeFeeling) Tone(ctx context.Context, affect models.AffectRecord) (models.ToneResponse, error) {
	return models.ToneResponse{}, nil
}

func (fakeFeeling) Augment(ctx context.Context, systemPrompt, templateID string) (models.AugmentResponse, error) {
	return models.AugmentResponse{SystemPrompt: systemPrompt}, nil
}

func (fakeFeeling) Critique(ctx context.Context, text string, maxTokens int) (models.CritiqueResponse, error) {
	return models.CritiqueResponse{CleanedText: text}, nil
}

type fakeDrive struct{}

func (fakeDrive) Get(ctx context.Context, userID string) (models.DriveState, error) {
	return models.NewDriveState(userID), nil
}

func (fakeDrive) Update(ctx context.Context, userID string, req models.DriveUpdateRequest) (models.DriveState, error) {
	return models.NewDriveState(userID), nil
}

func (fakeDrive) Policy(ctx context.Context, userID string) (models.DrivePolicy, error) {
	return models.DrivePolicy{}, nil
}

type fakePolicy struct {
	validateOK       bool
	validateRepaired string
}

func (fakePolicy) Apply(ctx context.Context, req models.PolicyApplyRequest) (models.PolicyApplyResponse, error) {
	return models.PolicyApplyResponse{SystemFinal: "system addendum"}, nil
}

func (f fakePolicy) Validate(ctx context.Context, req models.PolicyValidateRequest) (models.PolicyValidateResponse, error) {
	return models.PolicyValidateResponse{OK: f.validateOK, Repaired: f.validateRepaired}, nil
}

type fakeToolHub struct{}

func (fakeToolHub) ListTools(ctx context.Context) ([]models.ToolDef, error) {
	return nil, nil
}

func (fakeToolHub) Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error) {
	return models.ToolResult{Success: true}, nil
}

type fakeTelemetry struct{}

func (fakeTelemetry) Log(ctx context.Context, event string, payload map[string]interface{}) (models.LogEventResponse, error) {
	return models.LogEventResponse{Status: "logged"}, nil
}

func (fakeTelemetry) CacheGet(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (fakeTelemetry) CacheSet(ctx context.Context, key string, data interface{}, ttl int) error {
	return nil
}

type fakeProvider struct {
	id      string
	content string
}

func (f fakeProvider) ID() string { return f.id }

func (f fakeProvider) ChatCompletion(ctx context.Context, req models.ProviderChatRequest) (models.ProviderChatResponse, error) {
	return models.ProviderChatResponse{
		ID: "resp-1",
		Choices: []models.ProviderChoice{{Message: struct {
			Role      models.Role        `json:"role"`
			Content   string             `json:"content"`
			ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
		}{Content: f.content}}},
	}, nil
}

func newOrchestrator(policy fakePolicy) (*pipeline.Orchestrator, *fakeMemory) {
	mem := &fakeMemory{}
	cfg := config.ProviderConfig{
		DefaultLocalModel: "local/default",
		ToolcallModel:     "remote/toolcall",
		VisionModel:       "remote/vision",
		ExplicitModel:     "remote/explicit",
		CoderModel:        "remote/coder",
	}
	r := router.New(cfg, fakeProvider{id: "local", content: "the answer"})
	return &pipeline.Orchestrator{
		Intent:    fakeIntent{},
		Memory:    mem,
		Feeling:   fakeFeeling{},
		Drive:     fakeDrive{},
		Policy:    policy,
		ToolHub:   fakeToolHub{},
		Telemetry: fakeTelemetry{},
		Router:    r,
		MaxIters:  1,
	}, mem
}

func TestProcessChat_HappyPath(t *testing.T) {
	o, mem := newOrchestrator(fakePolicy{validateOK: true})

	resp, err := o.ProcessChat(context.Background(), models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello there"}},
		User:     "u1",
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "the answer", resp.Choices[0].Message.Content)
	assert.Equal(t, "local/default", resp.Model)

	// post() enqueues user + assistant candidates asynchronously; give the
	// background goroutine a chance to run before asserting on it.
	assert.Eventually(t, func() bool { return len(mem.snapshot()) == 2 }, assertEventuallyTimeout, assertEventuallyTick)
}

func TestProcessChat_EmptyMessagesRejected(t *testing.T) {
	o, _ := newOrchestrator(fakePolicy{validateOK: true})
	_, err := o.ProcessChat(context.Background(), models.ChatRequest{})
	assert.Error(t, err)
}

func TestProcessChat_UsesRepairedTextWhenValidateFails(t *testing.T) {
	o, _ := newOrchestrator(fakePolicy{validateOK: false, validateRepaired: "repaired text"})

	resp, err := o.ProcessChat(context.Background(), models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "repaired text", resp.Choices[0].Message.Content)
}

func TestProcessChat_DefaultsAnonymousUser(t *testing.T) {
	o, mem := newOrchestrator(fakePolicy{validateOK: true})

	_, err := o.ProcessChat(context.Background(), models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		for _, c := range mem.snapshot() {
			if c.UserID == "anon" {
				return true
			}
		}
		return false
	}, assertEventuallyTimeout, assertEventuallyTick)
}

func TestProcessChatStream_RelaysDeltasAndRunsPost(t *testing.T) {
	o, mem := newOrchestrator(fakePolicy{validateOK: true})

	var deltas []string
	err := o.ProcessChatStream(context.Background(), models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}},
		User:     "u1",
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"the answer"}, deltas)

	// Post runs best-effort after stream closure with the accumulated text.
	assert.Eventually(t, func() bool { return len(mem.snapshot()) == 2 }, assertEventuallyTimeout, assertEventuallyTick)
}

func TestProcessChatStream_EmptyMessagesRejected(t *testing.T) {
	o, _ := newOrchestrator(fakePolicy{validateOK: true})
	err := o.ProcessChatStream(context.Background(), models.ChatRequest{}, func(string) error { return nil })
	assert.Error(t, err)
}

func TestProcessChat_EstimatesUsageWhenProviderReportsNone(t *testing.T) {
	o, _ := newOrchestrator(fakePolicy{validateOK: true})

	resp, err := o.ProcessChat(context.Background(), models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello there friend"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Usage.Estimated)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}
