// Package memory implements the Memory Service: PII-filtered trait
// extraction and episode storage, backed by a pluggable Store.
package memory

import (
	"context"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Store is the persistence boundary for traits and episodes. Two
// implementations exist: a modernc.org/sqlite-backed Store for durable
// single-node deployment, and an in-memory Store for tests and the
// zero-dependency default.
type Store interface {
	UpsertTrait(ctx context.Context, t models.Trait) error
	ListTraits(ctx context.Context, userID string, minConfidence float64) ([]models.Trait, error)
	InsertEpisode(ctx context.Context, e models.Episode) error
	ListEpisodes(ctx context.Context, userID string, minConfidence float64, limit int) ([]models.Episode, error)
	DeleteUser(ctx context.Context, userID string) (traits int, episodes int, err error)
	Close() error
}
