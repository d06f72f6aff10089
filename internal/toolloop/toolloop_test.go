package toolloop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/toolloop"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

type fakeHub struct {
	execCalls int
	lastArgs  map[string]interface{}
}

func (f *fakeHub) ListTools(ctx context.Context) ([]models.ToolDef, error) {
	return nil, nil
}

func (f *fakeHub) Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error) {
	f.execCalls++
	f.lastArgs = arguments
	if name == "boom" {
		return models.ToolResult{Name: name, Success: false}, errors.New("tool failed")
	}
	return models.ToolResult{Name: name, Success: true, Result: "ok"}, nil
}

func TestRun_MaxItersZero_ReturnsFirstResponseAsIs(t *testing.T) {
	hub := &fakeHub{}
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{
				Message: struct {
					Role      models.Role      `json:"role"`
					Content   string           `json:"content"`
					ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
				}{Content: "hello", ToolCalls: []models.ToolCall{{ID: "1", Function: struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				}{Name: "echo", Arguments: `{}`}}}},
			}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.FinalText)
	assert.Empty(t, result.Turns)
	assert.Equal(t, 0, hub.execCalls, "maxIters=0 must never inspect tool_calls")
}

func TestRun_TerminatesWhenNoToolCalls(t *testing.T) {
	hub := &fakeHub{}
	calls := 0
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		calls++
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{Message: struct {
				Role      models.Role        `json:"role"`
				Content   string             `json:"content"`
				ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
			}{Content: "final answer"}}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "final answer", result.FinalText)
	require.Len(t, result.Turns, 1)
	assert.Equal(t, 1, calls, "loop should stop after the first tool_calls-free response")
}

func TestRun_ExecutesToolCallsAndFeedsResultsBack(t *testing.T) {
	hub := &fakeHub{}
	round := 0
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		round++
		if round == 1 {
			return models.ProviderChatResponse{
				Choices: []models.ProviderChoice{{Message: struct {
					Role      models.Role        `json:"role"`
					Content   string             `json:"content"`
					ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
				}{ToolCalls: []models.ToolCall{{ID: "call-1", Function: struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				}{Name: "echo", Arguments: `{"text":"hi"}`}}}}}},
			}, nil
		}
		// second round: the loop should have appended a tool-role message.
		require.Greater(t, len(messages), 0)
		last := messages[len(messages)-1]
		assert.Equal(t, models.RoleTool, last.Role)
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{Message: struct {
				Role      models.Role        `json:"role"`
				Content   string             `json:"content"`
				ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
			}{Content: "done"}}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalText)
	require.Len(t, result.Turns, 2)
	require.Len(t, result.Turns[0].ToolResults, 1)
	assert.True(t, result.Turns[0].ToolResults[0].Success)
	assert.Equal(t, 1, hub.execCalls)
	assert.Equal(t, "hi", hub.lastArgs["text"])
}

func TestRun_BoundedByMaxIters(t *testing.T) {
	hub := &fakeHub{}
	calls := 0
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		calls++
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{Message: struct {
				Role      models.Role        `json:"role"`
				Content   string             `json:"content"`
				ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
			}{ToolCalls: []models.ToolCall{{ID: "x", Function: struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			}{Name: "echo", Arguments: `{}`}}}}}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "loop must stop after maxIters rounds even if tool_calls keep coming")
	assert.Len(t, result.Turns, 2)
}

func TestRun_CallErrorAborts(t *testing.T) {
	hub := &fakeHub{}
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		return models.ProviderChatResponse{}, errors.New("provider down")
	}

	_, err := toolloop.Run(context.Background(), hub, call, nil, nil, 3)
	assert.Error(t, err)
}

func TestRun_MalformedArgumentsFallBackToEmptyObject(t *testing.T) {
	hub := &fakeHub{}
	round := 0
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		round++
		if round == 1 {
			return models.ProviderChatResponse{
				Choices: []models.ProviderChoice{{Message: struct {
					Role      models.Role        `json:"role"`
					Content   string             `json:"content"`
					ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
				}{ToolCalls: []models.ToolCall{{ID: "c1", Function: struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				}{Name: "echo", Arguments: `not-json{{{`}}}}}},
			}, nil
		}
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{Message: struct {
				Role      models.Role        `json:"role"`
				Content   string             `json:"content"`
				ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
			}{Content: "done"}}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, nil, nil, 3)
	require.NoError(t, err, "malformed tool arguments must not abort the loop")
	assert.Equal(t, "done", result.FinalText)
	assert.Equal(t, map[string]interface{}{}, hub.lastArgs)
}

func TestRun_ToolExecFailureIsRecordedNotFatal(t *testing.T) {
	hub := &fakeHub{}
	round := 0
	call := func(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDef) (models.ProviderChatResponse, error) {
		round++
		if round == 1 {
			return models.ProviderChatResponse{
				Choices: []models.ProviderChoice{{Message: struct {
					Role      models.Role        `json:"role"`
					Content   string             `json:"content"`
					ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
				}{ToolCalls: []models.ToolCall{{ID: "c1", Function: struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				}{Name: "boom", Arguments: `{}`}}}}}},
			}, nil
		}
		return models.ProviderChatResponse{
			Choices: []models.ProviderChoice{{Message: struct {
				Role      models.Role        `json:"role"`
				Content   string             `json:"content"`
				ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
			}{Content: "recovered"}}},
		}, nil
	}

	result, err := toolloop.Run(context.Background(), hub, call, nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.FinalText)
	require.Len(t, result.Turns[0].ToolResults, 1)
	assert.False(t, result.Turns[0].ToolResults[0].Success)
	assert.NotEmpty(t, result.Turns[0].ToolResults[0].Error)
}
