package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// ToolHubClient calls cmd/toolhubd's list/exec endpoints.
type ToolHubClient struct{ base }

func NewToolHubClient(baseURL string, signer *hmacauth.Signer) *ToolHubClient {
	return &ToolHubClient{newBase(baseURL, &http.Client{Timeout: 120 * time.Second}, signer)}
}

func (c *ToolHubClient) ListTools(ctx context.Context) ([]models.ToolDef, error) {
	var out struct {
		Tools []models.ToolDef `json:"tools"`
	}
	err := c.getJSON(ctx, "/tools", nil, &out)
	return out.Tools, err
}

func (c *ToolHubClient) Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error) {
	req := struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}{Name: name, Arguments: arguments}

	var out struct {
		Result  interface{} `json:"result,omitempty"`
		Error   string      `json:"error,omitempty"`
		Success bool        `json:"success"`
	}
	err := c.postJSON(ctx, "/tools/exec", req, &out)
	if err != nil {
		return models.ToolResult{Name: name, Success: false, Error: err.Error()}, err
	}
	return models.ToolResult{Name: name, Success: out.Success, Result: out.Result, Error: out.Error}, nil
}
