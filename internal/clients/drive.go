package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// DriveClient calls cmd/drived's get/update/policy endpoints.
type DriveClient struct{ base }

func NewDriveClient(baseURL string, signer *hmacauth.Signer) *DriveClient {
	return &DriveClient{newBase(baseURL, &http.Client{Timeout: 2 * time.Second}, signer)}
}

func (c *DriveClient) Get(ctx context.Context, userID string) (models.DriveState, error) {
	var out models.DriveState
	err := c.getJSON(ctx, "/drive/get", url.Values{"user_id": {userID}}, &out)
	return out, err
}

func (c *DriveClient) Update(ctx context.Context, userID string, req models.DriveUpdateRequest) (models.DriveState, error) {
	var out models.DriveState
	err := c.postJSON(ctx, "/drive/update?user_id="+url.QueryEscape(userID), req, &out)
	return out, err
}

func (c *DriveClient) Policy(ctx context.Context, userID string) (models.DrivePolicy, error) {
	var out models.DrivePolicy
	err := c.postJSON(ctx, "/drive/policy?user_id="+url.QueryEscape(userID), struct{}{}, &out)
	return out, err
}
