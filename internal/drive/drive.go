// Package drive implements the per-user five-dimension mood vector: decay
// toward baseline plus a bounded random walk on every read, and the fixed
// style-hint derivation used by Policy Guardrails. States persist through a
// pluggable Backing so they survive restarts.
package drive

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

const (
	baselineDecayRate = 0.001
	randomWalkStep    = 0.02
	baseline          = 0.5
)

// Backing persists one DriveState per user. The Store serializes the
// read-modify-write decay cycle above it, so implementations only need
// per-row atomicity.
type Backing interface {
	Load(ctx context.Context, userID string) (models.DriveState, bool, error)
	Save(ctx context.Context, state models.DriveState) error
	Close() error
}

// Store holds one DriveState per user behind a single store-wide mutex, so
// the read-modify-write decay cycle stays atomic per user; there is no
// per-user lock, and reads for different users also wait on each other. States load lazily
// from the Backing (when one is configured) and write back after every
// mutation; without a Backing the Store is purely in-memory.
type Store struct {
	mu      sync.Mutex
	states  map[string]*models.DriveState
	backing Backing
	rng     *rand.Rand
	rngMu   sync.Mutex
}

// NewStore returns an in-memory drive-state store with no durable backing.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*models.DriveState),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewStoreWithBacking returns a store that loads missing states from b and
// writes every mutated state back to it.
func NewStoreWithBacking(b Backing) *Store {
	s := NewStore()
	s.backing = b
	return s
}

// Close releases the backing, if any.
func (s *Store) Close() error {
	if s.backing != nil {
		return s.backing.Close()
	}
	return nil
}

// Get returns the current, re-derived state for userID, creating a baseline
// state lazily on first reference.
func (s *Store) Get(ctx context.Context, userID string) models.DriveState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load(ctx, userID)

	s.applyDecay(state)
	s.applyRandomWalk(state)
	state.Clamp()
	state.UpdatedAt = time.Now()
	s.persist(ctx, state)

	return *state
}

// Update adds deltas to the current state and persists the clamped result.
func (s *Store) Update(ctx context.Context, userID string, delta models.DriveDelta) models.DriveState {
	current := s.Get(ctx, userID) // re-derives decay/walk first, matching the get-then-update order

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[userID]
	state.Energy = current.Energy + delta.Energy
	state.Sociability = current.Sociability + delta.Sociability
	state.Curiosity = current.Curiosity + delta.Curiosity
	state.EmpathyReserve = current.EmpathyReserve + delta.EmpathyReserve
	state.NoveltySeek = current.NoveltySeek + delta.NoveltySeek
	state.Clamp()
	state.UpdatedAt = time.Now()
	s.persist(ctx, state)

	return *state
}

// load returns the cached state for userID, consulting the backing before
// falling back to a fresh baseline. Callers hold s.mu.
func (s *Store) load(ctx context.Context, userID string) *models.DriveState {
	if state, ok := s.states[userID]; ok {
		return state
	}
	if s.backing != nil {
		loaded, found, err := s.backing.Load(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("drive state load failed, starting from baseline")
		} else if found {
			s.states[userID] = &loaded
			return &loaded
		}
	}
	baselineState := models.NewDriveState(userID)
	s.states[userID] = &baselineState
	return &baselineState
}

// persist writes state back to the backing, best-effort. Callers hold s.mu.
func (s *Store) persist(ctx context.Context, state *models.DriveState) {
	if s.backing == nil {
		return
	}
	if err := s.backing.Save(ctx, *state); err != nil {
		log.Warn().Err(err).Str("user_id", state.UserID).Msg("drive state save failed")
	}
}

func (s *Store) applyDecay(state *models.DriveState) {
	elapsed := time.Since(state.UpdatedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	factor := elapsed * baselineDecayRate * 10
	if factor > 1 {
		factor = 1
	}
	state.Energy += (baseline - state.Energy) * factor
	state.Sociability += (baseline - state.Sociability) * factor
	state.Curiosity += (baseline - state.Curiosity) * factor
	state.EmpathyReserve += (baseline - state.EmpathyReserve) * factor
	state.NoveltySeek += (baseline - state.NoveltySeek) * factor
}

func (s *Store) applyRandomWalk(state *models.DriveState) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	state.Energy += s.step()
	state.Sociability += s.step()
	state.Curiosity += s.step()
	state.EmpathyReserve += s.step()
	state.NoveltySeek += s.step()
}

func (s *Store) step() float64 {
	return (s.rng.Float64()*2 - 1) * randomWalkStep
}

func categorize(v float64) models.DriveLevel {
	switch {
	case v < 0.25:
		return models.LevelVeryLow
	case v < 0.4:
		return models.LevelLow
	case v < 0.6:
		return models.LevelModerate
	case v < 0.75:
		return models.LevelHigh
	default:
		return models.LevelVeryHigh
	}
}

// Policy derives the style-hint table for the current state of userID.
func (s *Store) Policy(ctx context.Context, userID string) models.DrivePolicy {
	state := s.Get(ctx, userID)
	hints := styleHints(state)
	return models.DrivePolicy{
		EnergyLevel:       categorize(state.Energy),
		SocialStyle:       categorize(state.Sociability),
		CuriosityLevel:    categorize(state.Curiosity),
		EmpathyApproach:   categorize(state.EmpathyReserve),
		NoveltyPreference: categorize(state.NoveltySeek),
		StyleHints:        hints,
	}
}

func styleHints(state models.DriveState) []string {
	var hints []string
	if state.Energy < 0.3 {
		hints = append(hints, "Keep responses brief and focused")
	} else if state.Energy > 0.7 {
		hints = append(hints, "Provide detailed, energetic responses")
	}
	if state.Sociability < 0.3 {
		hints = append(hints, "Minimize social chit-chat")
	} else if state.Sociability > 0.7 {
		hints = append(hints, "Include friendly, conversational elements")
	}
	if state.Curiosity < 0.3 {
		hints = append(hints, "Stick to practical, direct information")
	} else if state.Curiosity > 0.7 {
		hints = append(hints, "Include interesting facts and connections")
	}
	if state.EmpathyReserve < 0.3 {
		hints = append(hints, "Focus on solutions over emotional support")
	} else if state.EmpathyReserve > 0.7 {
		hints = append(hints, "Show understanding and emotional awareness")
	}
	if state.NoveltySeek < 0.3 {
		hints = append(hints, "Use familiar, established approaches")
	} else if state.NoveltySeek > 0.7 {
		hints = append(hints, "Introduce novel ideas and perspectives")
	}
	if len(hints) == 0 {
		hints = []string{"Maintain balanced, neutral communication style"}
	}
	return hints
}

// Focus derives the guardrail "{focus}" placeholder from the dimensions the
// drive model actually stores: focus = curiosity * (1 - (1-empathy_reserve)/2).
func Focus(state models.DriveState) float64 {
	return state.Curiosity * (1 - (1-state.EmpathyReserve)/2)
}
