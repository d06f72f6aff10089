package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// IntentClient calls cmd/intentd's /classify and /route endpoints.
type IntentClient struct{ base }

func NewIntentClient(baseURL string, signer *hmacauth.Signer) *IntentClient {
	return &IntentClient{newBase(baseURL, &http.Client{Timeout: 2 * time.Second}, signer)}
}

func (c *IntentClient) Classify(ctx context.Context, req models.ClassifyRequest) (models.ClassifyResponse, error) {
	var out models.ClassifyResponse
	err := c.postJSON(ctx, "/classify", req, &out)
	return out, err
}

func (c *IntentClient) Route(ctx context.Context, req models.RouteRequest) (models.RouteResponse, error) {
	var out models.RouteResponse
	err := c.postJSON(ctx, "/route", req, &out)
	return out, err
}
