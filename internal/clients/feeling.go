package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// FeelingClient calls cmd/feelingd's affect/augment/templates endpoints.
type FeelingClient struct{ base }

func NewFeelingClient(baseURL string, signer *hmacauth.Signer) *FeelingClient {
	return &FeelingClient{newBase(baseURL, &http.Client{Timeout: 2 * time.Second}, signer)}
}

func (c *FeelingClient) Analyze(ctx context.Context, text string) (models.AffectRecord, error) {
	var out models.AffectRecord
	err := c.postJSON(ctx, "/affect/analyze", models.AnalyzeRequest{Text: text}, &out)
	return out, err
}

func (c *FeelingClient) Tone(ctx context.Context, affect models.AffectRecord) (models.ToneResponse, error) {
	var out models.ToneResponse
	err := c.postJSON(ctx, "/affect/tone", models.ToneRequest{Affect: affect}, &out)
	return out, err
}

func (c *FeelingClient) Augment(ctx context.Context, systemPrompt, templateID string) (models.AugmentResponse, error) {
	var out models.AugmentResponse
	req := models.AugmentRequest{SystemPrompt: systemPrompt, EmotionTemplateID: templateID}
	err := c.postJSON(ctx, "/augment", req, &out)
	return out, err
}

func (c *FeelingClient) Critique(ctx context.Context, text string, maxTokens int) (models.CritiqueResponse, error) {
	var out models.CritiqueResponse
	req := models.CritiqueRequest{Text: text, MaxTokens: maxTokens}
	err := c.postJSON(ctx, "/critique", req, &out)
	return out, err
}
