package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/openrelay/gatewaysuite/internal/pii"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

const (
	traitConfidenceGate   = 0.7
	episodeConfidenceGate = 0.7
	episodeMinContentLen  = 20
	episodeSummaryTokens  = 200
)

// Service implements the memory write/retrieve policy: PII redaction,
// confidence-gated trait extraction, and confidence-gated episode write, on
// top of a pluggable Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// WriteCandidate applies the write policy to one candidate and persists
// whatever clears the confidence gates.
func (s *Service) WriteCandidate(ctx context.Context, cand models.MemoryCandidate) (models.MemoryWriteResult, error) {
	redacted, classes := pii.Redact(cand.Text)
	piiFiltered := len(classes) > 0

	confidence := cand.Confidence
	if confidence <= 0 {
		confidence = episodeConfidenceGate
	}

	result := models.MemoryWriteResult{Success: true, PIIFiltered: piiFiltered}

	for _, t := range extractTraits(redacted) {
		if t.confidence < traitConfidenceGate {
			continue
		}
		now := time.Now()
		trait := models.Trait{
			UserID:     cand.UserID,
			Key:        t.key,
			Value:      t.value,
			Confidence: t.confidence,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.UpsertTrait(ctx, trait); err != nil {
			return models.MemoryWriteResult{}, fmt.Errorf("upsert trait: %w", err)
		}
		result.TraitsExtracted++
	}

	if len(redacted) >= episodeMinContentLen && confidence >= episodeConfidenceGate {
		episode := models.Episode{
			ID:         episodeID(cand.UserID, redacted),
			UserID:     cand.UserID,
			Content:    redacted,
			Summary:    summarize(redacted, episodeSummaryTokens),
			Confidence: confidence,
			Tags:       cand.Tags,
			CreatedAt:  time.Now(),
		}
		if err := s.store.InsertEpisode(ctx, episode); err != nil {
			return models.MemoryWriteResult{}, fmt.Errorf("insert episode: %w", err)
		}
		result.EpisodeCreated = true
	}

	return result, nil
}

// Retrieve returns traits and episodes for a user, optionally text-matching
// episodes on query, filtered by a minimum confidence.
func (s *Service) Retrieve(ctx context.Context, userID string, minConfidence float64, query string, k int) (models.MemoryRetrieveResponse, error) {
	traits, err := s.store.ListTraits(ctx, userID, minConfidence)
	if err != nil {
		return models.MemoryRetrieveResponse{}, fmt.Errorf("list traits: %w", err)
	}
	episodes, err := s.store.ListEpisodes(ctx, userID, minConfidence, k)
	if err != nil {
		return models.MemoryRetrieveResponse{}, fmt.Errorf("list episodes: %w", err)
	}
	if query != "" {
		episodes = filterByQuery(episodes, query)
	}
	return models.MemoryRetrieveResponse{Traits: traits, Episodes: episodes}, nil
}

// Summary returns a short prose digest of a user's most confident traits,
// the form the gateway's Pre stage folds into "[MEMORY SUMMARY]" addenda.
func (s *Service) Summary(ctx context.Context, userID string) (string, error) {
	traits, err := s.store.ListTraits(ctx, userID, traitConfidenceGate)
	if err != nil {
		return "", fmt.Errorf("list traits: %w", err)
	}
	if len(traits) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(traits))
	for _, t := range traits {
		parts = append(parts, fmt.Sprintf("%s: %s", t.Key, t.Value))
	}
	return strings.Join(parts, "; "), nil
}

func filterByQuery(episodes []models.Episode, query string) []models.Episode {
	q := strings.ToLower(query)
	out := make([]models.Episode, 0, len(episodes))
	for _, e := range episodes {
		if strings.Contains(strings.ToLower(e.Content), q) || strings.Contains(strings.ToLower(e.Summary), q) {
			out = append(out, e)
		}
	}
	return out
}

func episodeID(userID, content string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%s", userID, time.Now().UnixNano(), content)))
	return hex.EncodeToString(h[:])
}
