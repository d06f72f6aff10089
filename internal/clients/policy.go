package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// PolicyClient calls cmd/policyd's apply/validate endpoints.
type PolicyClient struct{ base }

func NewPolicyClient(baseURL string, signer *hmacauth.Signer) *PolicyClient {
	return &PolicyClient{newBase(baseURL, &http.Client{Timeout: 1 * time.Second}, signer)}
}

func (c *PolicyClient) Apply(ctx context.Context, req models.PolicyApplyRequest) (models.PolicyApplyResponse, error) {
	var out models.PolicyApplyResponse
	err := c.postJSON(ctx, "/policy/apply", req, &out)
	return out, err
}

func (c *PolicyClient) Validate(ctx context.Context, req models.PolicyValidateRequest) (models.PolicyValidateResponse, error) {
	var out models.PolicyValidateResponse
	err := c.postJSON(ctx, "/policy/validate", req, &out)
	return out, err
}
