package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/memory"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

func newTestService(t *testing.T) *memory.Service {
	t.Helper()
	return memory.NewService(memory.NewMemStore())
}

func TestWriteCandidate_RedactsPII(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.WriteCandidate(ctx, models.MemoryCandidate{
		UserID:     "u1",
		Text:       "My name is Alex and you can reach me at alex@example.com about the project",
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PIIFiltered)
	assert.True(t, result.EpisodeCreated)

	snap, err := svc.Retrieve(ctx, "u1", 0, "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Episodes)
	assert.NotContains(t, snap.Episodes[0].Content, "alex@example.com")
}

func TestWriteCandidate_TraitConfidenceGate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// "I like" extracts at confidence 0.6, below the 0.7 gate: should not
	// be stored as a trait even though the candidate itself clears the
	// episode-confidence gate.
	result, err := svc.WriteCandidate(ctx, models.MemoryCandidate{
		UserID:     "u2",
		Text:       "I like going for long walks in the park on weekends",
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TraitsExtracted)

	// "My name is" extracts at confidence 0.9, above the gate.
	result2, err := svc.WriteCandidate(ctx, models.MemoryCandidate{
		UserID:     "u2",
		Text:       "My name is Jordan and I work as a teacher at the local school",
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Greater(t, result2.TraitsExtracted, 0)
}

func TestUpsertTrait_ConfidenceMonotonic(t *testing.T) {
	store := memory.NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertTrait(ctx, models.Trait{UserID: "u3", Key: "occupation", Value: "teacher", Confidence: 0.8}))
	require.NoError(t, store.UpsertTrait(ctx, models.Trait{UserID: "u3", Key: "occupation", Value: "stale-guess", Confidence: 0.3}))

	traits, err := store.ListTraits(ctx, "u3", 0)
	require.NoError(t, err)
	require.Len(t, traits, 1)
	assert.Equal(t, "teacher", traits[0].Value)
	assert.Equal(t, 0.8, traits[0].Confidence)
}

func TestRetrieve_FiltersByMinConfidence(t *testing.T) {
	store := memory.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertTrait(ctx, models.Trait{UserID: "u4", Key: "name", Value: "Sam", Confidence: 0.9}))
	require.NoError(t, store.UpsertTrait(ctx, models.Trait{UserID: "u4", Key: "preference", Value: "tea", Confidence: 0.5}))

	svc := memory.NewService(store)
	resp, err := svc.Retrieve(ctx, "u4", 0.7, "", 5)
	require.NoError(t, err)
	require.Len(t, resp.Traits, 1)
	assert.Equal(t, "name", resp.Traits[0].Key)
}

func TestDeleteUser(t *testing.T) {
	store := memory.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertTrait(ctx, models.Trait{UserID: "u5", Key: "name", Value: "Sam", Confidence: 0.9}))
	require.NoError(t, store.InsertEpisode(ctx, models.Episode{ID: "e1", UserID: "u5", Content: "hello there friend", Confidence: 0.9}))

	traits, episodes, err := store.DeleteUser(ctx, "u5")
	require.NoError(t, err)
	assert.Equal(t, 1, traits)
	assert.Equal(t, 1, episodes)

	remaining, err := store.ListTraits(ctx, "u5", 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
