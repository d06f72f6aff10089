package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// openAIDriver speaks the OpenAI-compatible POST /chat/completions wire
// format; one instance backs the local provider (hitting a local
// text-generation server) and one backs the remote provider (hitting
// OPENROUTER_API_BASE with bearer auth).
type openAIDriver struct {
	id      string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewLocalProvider(baseURL string) contracts.ModelProvider {
	return &openAIDriver{id: "local", baseURL: baseURL, client: &http.Client{Timeout: 120 * time.Second}}
}

func NewRemoteProvider(baseURL, apiKey string) contracts.ModelProvider {
	return &openAIDriver{id: "remote", baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: 120 * time.Second}}
}

func (d *openAIDriver) ID() string { return d.id }

func (d *openAIDriver) ChatCompletion(ctx context.Context, req models.ProviderChatRequest) (models.ProviderChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: marshal request: %w", d.id, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: build request: %w", d.id, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: request failed: %w", d.id, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return models.ProviderChatResponse{}, &StatusError{
			Status: httpResp.StatusCode,
			Err:    fmt.Errorf("%s: status %d: %s", d.id, httpResp.StatusCode, string(respBody)),
		}
	}

	var out models.ProviderChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: decode response: %w", d.id, err)
	}
	return out, nil
}

// ChatCompletionStream sends the request with stream=true and relays each
// "data:" chunk's delta content through emit, in arrival order. It returns
// the accumulated response once the provider sends "data: [DONE]".
func (d *openAIDriver) ChatCompletionStream(ctx context.Context, req models.ProviderChatRequest, emit func(delta string) error) (models.ProviderChatResponse, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: marshal request: %w", d.id, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: build request: %w", d.id, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: request failed: %w", d.id, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return models.ProviderChatResponse{}, &StatusError{
			Status: httpResp.StatusCode,
			Err:    fmt.Errorf("%s: status %d: %s", d.id, httpResp.StatusCode, string(respBody)),
		}
	}

	var accumulated strings.Builder
	var usage *models.Usage
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var chunk models.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // malformed keep-alive or comment line
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			accumulated.WriteString(c.Delta.Content)
			if err := emit(c.Delta.Content); err != nil {
				return models.ProviderChatResponse{}, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return models.ProviderChatResponse{}, fmt.Errorf("%s: stream read: %w", d.id, err)
	}

	out := models.ProviderChatResponse{Model: req.Model, Usage: usage}
	out.Choices = []models.ProviderChoice{{}}
	out.Choices[0].Message.Role = models.RoleAssistant
	out.Choices[0].Message.Content = accumulated.String()
	return out, nil
}
