// Package clients implements pkg/contracts against the gateway's peer
// services over plain HTTP: shared postJSON/getJSON helpers (json.Marshal
// request body, status-code check, json.Decode response) instead of one
// bespoke call function per service.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/reqctx"
)

// base is embedded by every peer-service client: a base URL, an http.Client,
// and an optional HMAC signer for outbound POSTs.
type base struct {
	baseURL string
	client  *http.Client
	signer  *hmacauth.Signer
}

func newBase(baseURL string, client *http.Client, signer *hmacauth.Signer) base {
	if client == nil {
		client = http.DefaultClient
	}
	return base{baseURL: baseURL, client: client, signer: signer}
}

// postJSON marshals body, signs it if a signer is configured, POSTs it to
// path, and decodes the JSON response into out.
func (b base) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.signer != nil {
		b.signer.SignRequest(req, payload)
	}

	return b.do(req, out)
}

// getJSON issues a GET with query params and decodes the JSON response.
func (b base) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return b.do(req, out)
}

func (b base) do(req *http.Request, out interface{}) error {
	if rid := reqctx.RequestID(req.Context()); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", req.URL.Path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
