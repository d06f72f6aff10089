// Package toolloop implements the tool-call loop: a bounded iterative
// exchange between a model provider and the Tool Hub, executing each
// round's tool_calls and feeding results back until the model stops
// requesting tools or the iteration bound is reached. Tool dispatch is a
// flat
// POST /tools/exec {name,arguments} -> {result|error,success} contract,
// carried here by pkg/contracts.ToolHubClient.
package toolloop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// DefaultMaxIters is the bound on tool-call rounds absent an override.
const DefaultMaxIters = 3

// ToolCallsTotal counts tool executions, vector-labeled by tool name,
// exposed at GET /metrics.
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tool_calls_total",
		Help: "Total tool invocations made by the Tool-Call Loop, labeled by tool name.",
	},
	[]string{"tool"},
)

func init() {
	prometheus.MustRegister(ToolCallsTotal)
}

// Turn is one iteration of the loop, kept for tracing/debugging.
type Turn struct {
	Number      int                 `json:"number"`
	Request     []models.ChatMessage `json:"request"`
	Response    string              `json:"response,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
	LatencyMs   int64               `json:"latency_ms"`
}

// CallFunc invokes the chosen model provider for one turn. The pipeline
// supplies this so toolloop stays decoupled from Routing Policy selection.
type CallFunc func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error)

// Result is what the loop hands back to the Mid stage. Usage is the last
// response's usage object, nil when the provider reported none.
type Result struct {
	FinalText string
	Turns     []Turn
	Usage     *models.Usage
}

// Run executes up to maxIters rounds. maxIters == 0 returns the model's
// first response as-is without ever inspecting tool_calls.
func Run(ctx context.Context, hub contracts.ToolHubClient, call CallFunc, messages []models.ChatMessage, tools []models.ToolDef, maxIters int) (Result, error) {
	if maxIters < 0 {
		maxIters = DefaultMaxIters
	}

	if maxIters == 0 {
		resp, err := call(ctx, messages, tools)
		if err != nil {
			return Result{}, err
		}
		return Result{FinalText: firstContent(resp), Usage: resp.Usage}, nil
	}

	var turns []Turn
	var lastText string
	var lastUsage *models.Usage

	for i := 1; i <= maxIters; i++ {
		start := time.Now()
		resp, err := call(ctx, messages, tools)
		if err != nil {
			return Result{}, err
		}

		text := firstContent(resp)
		toolCalls := firstToolCalls(resp)
		lastText = text
		if resp.Usage != nil {
			lastUsage = resp.Usage
		}

		turn := Turn{Number: i, Request: messages, Response: text, ToolCalls: toolCalls}

		if len(toolCalls) == 0 {
			turn.LatencyMs = time.Since(start).Milliseconds()
			turns = append(turns, turn)
			return Result{FinalText: text, Turns: turns, Usage: lastUsage}, nil
		}

		if text != "" {
			messages = append(messages, models.ChatMessage{Role: models.RoleAssistant, Content: text})
		}

		results := make([]models.ToolResult, 0, len(toolCalls))
		for _, tc := range toolCalls {
			result := execOne(ctx, hub, tc)
			results = append(results, result)
			messages = append(messages, models.ChatMessage{
				Role:       models.RoleTool,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
				Content:    encodeResult(result),
			})
		}

		turn.ToolResults = results
		turn.LatencyMs = time.Since(start).Milliseconds()
		turns = append(turns, turn)
	}

	return Result{FinalText: lastText, Turns: turns, Usage: lastUsage}, nil
}

func execOne(ctx context.Context, hub contracts.ToolHubClient, tc models.ToolCall) models.ToolResult {
	args := parseArguments(tc.Function.Arguments)
	ToolCallsTotal.WithLabelValues(tc.Function.Name).Inc()
	result, err := hub.Exec(ctx, tc.Function.Name, args)
	result.ToolCallID = tc.ID
	if err != nil && result.Error == "" {
		result.Error = err.Error()
	}
	return result
}

// parseArguments JSON-decodes a tool call's string arguments; parse
// failure falls back to an empty object rather than aborting the loop.
func parseArguments(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func encodeResult(r models.ToolResult) string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"encode failure"}`
	}
	return string(b)
}

func firstContent(resp models.ProviderChatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

func firstToolCalls(resp models.ProviderChatResponse) []models.ToolCall {
	if len(resp.Choices) == 0 {
		return nil
	}
	return resp.Choices[0].Message.ToolCalls
}
