package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// TelemetryClient calls cmd/telemetryd's log/cache endpoints.
type TelemetryClient struct{ base }

func NewTelemetryClient(baseURL string, signer *hmacauth.Signer) *TelemetryClient {
	return &TelemetryClient{newBase(baseURL, &http.Client{Timeout: 2 * time.Second}, signer)}
}

func (c *TelemetryClient) Log(ctx context.Context, event string, payload map[string]interface{}) (models.LogEventResponse, error) {
	var out models.LogEventResponse
	err := c.postJSON(ctx, "/log", models.LogEvent{Event: event, Payload: payload}, &out)
	return out, err
}

func (c *TelemetryClient) CacheGet(ctx context.Context, key string) (string, bool, error) {
	var out struct {
		Data  string `json:"data"`
		Found bool   `json:"found"`
	}
	err := c.getJSON(ctx, "/cache/get", url.Values{"key": {key}}, &out)
	return out.Data, out.Found, err
}

func (c *TelemetryClient) CacheSet(ctx context.Context, key string, data interface{}, ttl int) error {
	req := models.CacheSetRequest{Key: key, Data: data, TTL: ttl}
	return c.postJSON(ctx, "/cache/set", req, nil)
}
