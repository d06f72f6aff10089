package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// MemStore is the in-process Store used by tests and by services run
// without MEMORY_DB_PATH set. Reads copy records into fresh slices under the
// lock; an episode's Tags slice is still shared with the stored record.
type MemStore struct {
	mu       sync.Mutex
	traits   map[string]map[string]models.Trait // user_id -> key -> trait
	episodes map[string][]models.Episode        // user_id -> episodes, newest first
}

func NewMemStore() *MemStore {
	return &MemStore{
		traits:   make(map[string]map[string]models.Trait),
		episodes: make(map[string][]models.Episode),
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) UpsertTrait(_ context.Context, t models.Trait) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	byKey, ok := m.traits[t.UserID]
	if !ok {
		byKey = make(map[string]models.Trait)
		m.traits[t.UserID] = byKey
	}
	existing, ok := byKey[t.Key]
	if ok && existing.Confidence > t.Confidence {
		return nil // monotonic confidence: never downgrade
	}
	t.UpdatedAt = now
	if ok {
		t.CreatedAt = existing.CreatedAt
	} else {
		t.CreatedAt = now
	}
	byKey[t.Key] = t
	return nil
}

func (m *MemStore) ListTraits(_ context.Context, userID string, minConfidence float64) ([]models.Trait, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Trait
	for _, t := range m.traits[userID] {
		if t.Confidence >= minConfidence {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemStore) InsertEpisode(_ context.Context, e models.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[e.UserID] = append([]models.Episode{e}, m.episodes[e.UserID]...)
	return nil
}

func (m *MemStore) ListEpisodes(_ context.Context, userID string, minConfidence float64, limit int) ([]models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Episode
	for _, e := range m.episodes[userID] {
		if e.Confidence >= minConfidence {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) DeleteUser(_ context.Context, userID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	traits := len(m.traits[userID])
	episodes := len(m.episodes[userID])
	delete(m.traits, userID)
	delete(m.episodes, userID)
	return traits, episodes, nil
}
