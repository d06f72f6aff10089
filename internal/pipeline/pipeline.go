// Package pipeline implements the Gateway Orchestrator's Pre/Mid/Post
// pipeline. Pre enriches the request with intent, memory, affect, and drive
// context behind a fault-isolated parallel fan-out; Mid runs the tool-call
// loop against the selected provider; Post persists memory candidates,
// validates the final text, and emits telemetry.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/drive"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/metrics"
	"github.com/openrelay/gatewaysuite/internal/router"
	"github.com/openrelay/gatewaysuite/internal/toolloop"
	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Orchestrator holds every dependency the pipeline needs to process one
// chat request, built once at process startup and shared across requests.
type Orchestrator struct {
	Intent    contracts.IntentClient
	Memory    contracts.MemoryClient
	Feeling   contracts.FeelingClient
	Drive     contracts.DriveClient
	Policy    contracts.PolicyClient
	ToolHub   contracts.ToolHubClient
	Telemetry contracts.TelemetryClient
	Router    *router.Router
	Tuning    config.TuningConfig
	MaxIters  int
}

// remoteEscalation: any code fence, language keyword, performance keyword,
// length>=350, or upscale signal forces needs_remote.
var (
	codeFence        = regexp.MustCompile("```")
	languageKeywords = regexp.MustCompile(`(?i)\b(def|class|import|#include|async def|public static)\b`)
	perfKeywords     = regexp.MustCompile(`(?i)\b(optimize|refactor|algorithm|complexity|asyncio|deadlock|thread|socket|performance|vectorize)\b`)
	upscaleSignals   = regexp.MustCompile(`(?i)\b(gpt-4|larger model|highest quality|best model)\b`)
)

func remoteEscalation(text string) bool {
	return codeFence.MatchString(text) ||
		languageKeywords.MatchString(text) ||
		perfKeywords.MatchString(text) ||
		len(text) >= 350 ||
		upscaleSignals.MatchString(text)
}

// preResult is what the Pre stage hands to Mid.
type preResult struct {
	intent     models.IntentRecord
	memory     models.MemorySnapshot
	affect     models.AffectRecord
	tone       models.ToneResponse
	drive      models.DriveState
	styleHints []string
	lane       models.Lane
	validators []models.Validator
	addenda    []string
}

func lastUserText(messages []models.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func laneFor(family models.Family) models.Lane {
	switch family {
	case models.FamilyTech:
		return models.LaneTechnical
	case models.FamilyPsychotherapy:
		return models.LaneEmotional
	case models.FamilyOpenEnded:
		return models.LaneCreative
	default:
		return models.LaneAnalytical
	}
}

// pre runs the Pre stage: synchronous intent classification, the
// remote-escalation heuristic, and a fault-isolated parallel fan-out of
// memory retrieve, memory summary, affect+tone, and drive+policy.
func (o *Orchestrator) pre(ctx context.Context, userID string, messages []models.ChatMessage) preResult {
	text := lastUserText(messages)
	var result preResult

	intentCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	intentResp, err := o.Intent.Route(intentCtx, models.RouteRequest{UserText: text})
	if err != nil {
		log.Warn().Err(err).Msg("intent router unavailable, defaulting")
		def := models.DefaultIntent()
		result.intent = def
	} else {
		result.intent = models.IntentRecord{
			Family:                 intentResp.Family,
			EmotionTemplateID:      intentResp.EmotionTemplateID,
			ProviderPreference:     intentResp.Provider,
			SuggestedModelPriority: intentResp.OpenRouterModelPriority,
			Tags:                   intentResp.Tags,
		}
	}
	if remoteEscalation(text) {
		result.intent.NeedsRemote = true
	}

	var visionObs string
	if attached := attachmentMessages(messages); len(attached) > 0 {
		visionCtx, visionCancel := context.WithTimeout(ctx, 90*time.Second)
		obs, err := o.Router.Observe(visionCtx, attached)
		visionCancel()
		if err != nil {
			log.Warn().Err(err).Msg("vision observation failed, continuing without it")
			go func() {
				_, _ = o.Telemetry.Log(context.WithoutCancel(ctx), "vision_observation_failed", map[string]interface{}{"error": err.Error()})
			}()
		} else {
			visionObs = obs
		}
	}

	result.lane = laneFor(result.intent.Family)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := o.memorySnapshot(gctx, userID, string(result.intent.Family))
		if err != nil {
			log.Warn().Err(err).Msg("memory retrieve failed, defaulting")
			return nil
		}
		result.memory = snap
		return nil
	})

	g.Go(func() error {
		affect, err := o.Feeling.Analyze(gctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("affect analyze failed, defaulting")
			return nil
		}
		result.affect = affect
		if tone, err := o.Feeling.Tone(gctx, affect); err != nil {
			log.Warn().Err(err).Msg("tone derivation failed, defaulting")
		} else {
			result.tone = tone
		}
		return nil
	})

	g.Go(func() error {
		state, err := o.Drive.Get(gctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("drive get failed, defaulting")
			result.drive = models.NewDriveState(userID)
			return nil
		}
		result.drive = state
		if policy, err := o.Drive.Policy(gctx, userID); err != nil {
			log.Warn().Err(err).Msg("drive policy failed, defaulting")
		} else {
			result.styleHints = policy.StyleHints
		}
		return nil
	})

	_ = g.Wait() // every branch already recovers its own error; nothing to propagate

	applyCtx, applyCancel := context.WithTimeout(ctx, time.Second)
	defer applyCancel()
	focus := drive.Focus(result.drive)
	applyResp, err := o.Policy.Apply(applyCtx, models.PolicyApplyRequest{
		Lane:   result.lane,
		System: baseSystemPrompt(result.lane),
		User:   text,
		Affect: models.AffectAndDrive{Emotion: primaryEmotion(result.affect), Intensity: result.affect.Confidence},
		Drive:  models.AffectDriveHint{Energy: result.drive.Energy, Focus: focus},
	})
	if err != nil {
		log.Warn().Err(err).Msg("policy apply failed, continuing without system_final")
	} else {
		result.validators = applyResp.Validators
		if applyResp.SystemFinal != "" {
			result.addenda = append(result.addenda, applyResp.SystemFinal)
		}
	}

	result.addenda = append(result.addenda, baseSystemPrompt(result.lane))
	if result.memory.Summary != "" {
		result.addenda = append(result.addenda, "[MEMORY SUMMARY] "+result.memory.Summary)
	}
	if len(result.memory.Episodes) > 0 {
		result.addenda = append(result.addenda, "[RELEVANT EPISODES] "+episodesText(result.memory.Episodes))
	}
	if affectJSON, err := json.Marshal(result.affect); err == nil {
		result.addenda = append(result.addenda, "[AFFECT] "+string(affectJSON))
	}
	if len(result.tone.TonePolicies) > 0 {
		result.addenda = append(result.addenda, "[TONE_POLICY] "+strings.Join(result.tone.TonePolicies, ","))
	}
	result.addenda = append(result.addenda, "[DRIVE_HINTS] "+driveHintsJSON(result.drive.Energy, focus, result.styleHints))
	if visionObs != "" {
		result.addenda = append(result.addenda, "[VISION_OBS]\n"+visionObs)
	}

	return result
}

// attachmentMessages returns the messages carrying attachments, preserving
// order, so the vision observation call sees only multimodal content.
func attachmentMessages(messages []models.ChatMessage) []models.ChatMessage {
	var out []models.ChatMessage
	for _, m := range messages {
		if len(m.Attachments) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func driveHintsJSON(energy, focus float64, hints []string) string {
	payload := struct {
		Energy     float64  `json:"energy"`
		Focus      float64  `json:"focus"`
		StyleHints []string `json:"style_hints,omitempty"`
	}{Energy: energy, Focus: focus, StyleHints: hints}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("{\"energy\":%.2f,\"focus\":%.2f}", energy, focus)
	}
	return string(b)
}

func (o *Orchestrator) memorySnapshot(ctx context.Context, userID, intent string) (models.MemorySnapshot, error) {
	summary, err := o.Memory.Summary(ctx, userID)
	if err != nil {
		return models.MemorySnapshot{}, err
	}
	retrieved, err := o.Memory.Retrieve(ctx, userID, intent, 5)
	if err != nil {
		return models.MemorySnapshot{Summary: summary}, nil
	}
	return models.MemorySnapshot{Summary: summary, Episodes: retrieved.Episodes, Traits: retrieved.Traits}, nil
}

func primaryEmotion(a models.AffectRecord) string {
	if len(a.Emotions) > 0 {
		return a.Emotions[0]
	}
	return "neutral"
}

func episodesText(episodes []models.Episode) string {
	parts := make([]string, 0, len(episodes))
	for _, e := range episodes {
		parts = append(parts, e.Summary)
	}
	return strings.Join(parts, " | ")
}

func baseSystemPrompt(lane models.Lane) string {
	return fmt.Sprintf("You are a helpful assistant operating in the %s lane.", lane)
}

// ProcessChat runs the full Pre -> Mid -> Post pipeline for one request.
func (o *Orchestrator) ProcessChat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return models.ChatResponse{}, gatewayerr.InvalidRequest("messages must not be empty")
	}

	if o.Tuning.PipelineTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.Tuning.PipelineTimeoutSeconds)*time.Second)
		defer cancel()
	}

	userID := req.User
	if userID == "" {
		userID = "anon"
	}

	pre := o.pre(ctx, userID, req.Messages)

	systemMessages := make([]models.ChatMessage, 0, len(pre.addenda))
	for _, a := range pre.addenda {
		systemMessages = append(systemMessages, models.ChatMessage{Role: models.RoleSystem, Content: a})
	}
	messages := append(systemMessages, req.Messages...)

	tools, err := o.toolSchema(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("tool schema fetch failed, continuing without tools")
		tools = nil
	}

	decision, err := o.Router.Select(req, tools)
	if err != nil {
		return models.ChatResponse{}, err
	}

	priority := pre.intent.SuggestedModelPriority
	if len(priority) == 0 {
		priority = []string{decision.ModelID}
	}

	call := func(ctx context.Context, msgs []models.ChatMessage, toolDefs []models.ToolDef) (models.ProviderChatResponse, error) {
		providerReq := models.ProviderChatRequest{Messages: msgs, Temperature: 0.3, Tools: toolDefs}
		resp, _, err := o.Router.CallWithFallback(ctx, decision.ProviderID, priority, providerReq, 60*time.Second)
		if err != nil {
			fallback, ferr := o.Router.Fallback(decision)
			if ferr != nil {
				return models.ProviderChatResponse{}, err
			}
			return o.Router.Call(ctx, fallback.ProviderID, fallback.ModelID, providerReq, 60*time.Second)
		}
		return resp, nil
	}

	maxIters := o.MaxIters
	if maxIters == 0 {
		maxIters = toolloop.DefaultMaxIters
	}
	loopResult, err := toolloop.Run(ctx, o.ToolHub, call, messages, tools, maxIters)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.PipelineTimeoutTotal.Inc()
			return models.ChatResponse{}, gatewayerr.Timeout("pipeline timeout exceeded")
		}
		return models.ChatResponse{}, gatewayerr.UpstreamFailure("tool-call loop failed", err)
	}

	draft := o.merge(ctx, loopResult.FinalText)
	finalText := o.post(ctx, userID, req.Messages, draft, pre)

	return models.ChatResponse{
		ID:      uuid.NewString(),
		Object:  "chat.completion",
		Choices: []models.Choice{{Index: 0, Message: models.ChoiceMessage{Role: models.RoleAssistant, Content: finalText}}},
		Model:   decision.ModelID,
		Usage:   usageFor(loopResult.Usage, messages, finalText),
	}, nil
}

// merge runs the critique pass over the draft; the critic's output replaces
// the draft only when non-empty.
func (o *Orchestrator) merge(ctx context.Context, draft string) string {
	if draft == "" {
		return draft
	}
	critiqueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	critique, err := o.Feeling.Critique(critiqueCtx, draft, 0)
	if err != nil {
		log.Warn().Err(err).Msg("critique failed, keeping draft")
		return draft
	}
	if critique.CleanedText == "" {
		return draft
	}
	return critique.CleanedText
}

// usageFor prefers the provider's own usage object; absent one it estimates
// chars/4 and flags the result as estimated.
func usageFor(reported *models.Usage, messages []models.ChatMessage, finalText string) models.Usage {
	if reported != nil {
		return *reported
	}
	promptChars := 0
	for _, m := range messages {
		promptChars += len(m.Content)
	}
	prompt := promptChars / 4
	completion := len(finalText) / 4
	return models.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}

// ProcessChatStream runs Pre synchronously, then relays provider deltas
// through emit in arrival order instead of collecting a full draft. Post
// runs after stream closure on a best-effort basis, using the accumulated
// text; repairs it produces cannot retroactively change already-sent deltas.
func (o *Orchestrator) ProcessChatStream(ctx context.Context, req models.ChatRequest, emit func(delta string) error) error {
	if len(req.Messages) == 0 {
		return gatewayerr.InvalidRequest("messages must not be empty")
	}

	if o.Tuning.PipelineTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.Tuning.PipelineTimeoutSeconds)*time.Second)
		defer cancel()
	}

	userID := req.User
	if userID == "" {
		userID = "anon"
	}

	pre := o.pre(ctx, userID, req.Messages)

	systemMessages := make([]models.ChatMessage, 0, len(pre.addenda))
	for _, a := range pre.addenda {
		systemMessages = append(systemMessages, models.ChatMessage{Role: models.RoleSystem, Content: a})
	}
	messages := append(systemMessages, req.Messages...)

	decision, err := o.Router.Select(req, nil)
	if err != nil {
		return err
	}

	providerReq := models.ProviderChatRequest{Messages: messages, Temperature: 0.3}
	resp, err := o.Router.Stream(ctx, decision.ProviderID, decision.ModelID, providerReq, emit)
	if err != nil {
		fallback, ferr := o.Router.Fallback(decision)
		if ferr != nil {
			if ctx.Err() == context.DeadlineExceeded {
				metrics.PipelineTimeoutTotal.Inc()
				return gatewayerr.Timeout("pipeline timeout exceeded")
			}
			return gatewayerr.UpstreamFailure("streaming provider failed", err)
		}
		resp, err = o.Router.Stream(ctx, fallback.ProviderID, fallback.ModelID, providerReq, emit)
		if err != nil {
			return gatewayerr.UpstreamFailure("streaming fallback failed", err)
		}
	}

	var accumulated string
	if len(resp.Choices) > 0 {
		accumulated = resp.Choices[0].Message.Content
	}
	o.post(ctx, userID, req.Messages, accumulated, pre)
	return nil
}

func (o *Orchestrator) toolSchema(ctx context.Context) ([]models.ToolDef, error) {
	schemaCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return o.ToolHub.ListTools(schemaCtx)
}

// post always runs, even if Mid partially failed: it enqueues memory
// candidates, validates/repairs the final text, and emits telemetry.
func (o *Orchestrator) post(ctx context.Context, userID string, userMessages []models.ChatMessage, finalText string, pre preResult) string {
	bg := context.WithoutCancel(ctx)

	go func() {
		if _, err := o.Memory.WriteCandidate(bg, models.MemoryCandidate{UserID: userID, Text: lastUserText(userMessages), Confidence: 0.7}); err != nil {
			log.Warn().Err(err).Msg("memory candidate write (user) failed")
		}
		if _, err := o.Memory.WriteCandidate(bg, models.MemoryCandidate{UserID: userID, Text: finalText, Confidence: 0.6}); err != nil {
			log.Warn().Err(err).Msg("memory candidate write (assistant) failed")
		}
	}()

	validateCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	validateResp, err := o.Policy.Validate(validateCtx, models.PolicyValidateRequest{Lane: pre.lane, Text: finalText})
	if err != nil {
		log.Warn().Err(err).Msg("policy validate failed, leaving text unrepaired")
	} else if !validateResp.OK && validateResp.Repaired != "" {
		finalText = validateResp.Repaired
	}

	metrics.ChatTurnTotal.Inc()
	go func() {
		_, _ = o.Telemetry.Log(bg, "chat_turn", map[string]interface{}{
			"family":          string(pre.intent.Family),
			"response_length": len(finalText),
		})
	}()

	return finalText
}
