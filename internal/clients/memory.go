package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// MemoryClient calls cmd/memoryd's retrieve/summary/candidates endpoints.
type MemoryClient struct{ base }

func NewMemoryClient(baseURL string, signer *hmacauth.Signer) *MemoryClient {
	return &MemoryClient{newBase(baseURL, &http.Client{Timeout: 60 * time.Second}, signer)}
}

func (c *MemoryClient) Retrieve(ctx context.Context, userID, intent string, k int) (models.MemoryRetrieveResponse, error) {
	q := url.Values{"user_id": {userID}}
	if intent != "" {
		q.Set("intent", intent)
	}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	var out models.MemoryRetrieveResponse
	err := c.getJSON(ctx, "/mem/retrieve", q, &out)
	return out, err
}

func (c *MemoryClient) Summary(ctx context.Context, userID string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.getJSON(ctx, "/mem/summary", url.Values{"user_id": {userID}}, &out)
	return out.Summary, err
}

func (c *MemoryClient) WriteCandidate(ctx context.Context, cand models.MemoryCandidate) (models.MemoryWriteResult, error) {
	var out models.MemoryWriteResult
	err := c.postJSON(ctx, "/mem/candidates", cand, &out)
	return out, err
}
