package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// SQLiteStore persists traits/episodes with modernc.org/sqlite, the pure-Go
// driver the pack (bfeller-HattieBot, dshills-langgraph-go) carries so this
// service needs no cgo toolchain.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the traits/episodes schema
// at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	schema := []string{
		`CREATE TABLE IF NOT EXISTS traits (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT NOT NULL,
			confidence REAL NOT NULL,
			tags TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traits_user ON traits(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_user ON episodes(user_id, created_at DESC)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: init schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// UpsertTrait never lowers a stored confidence: the monotonicity invariant
// is enforced with a conditional UPDATE rather than a blind REPLACE.
func (s *SQLiteStore) UpsertTrait(ctx context.Context, t models.Trait) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE traits SET value = ?, confidence = ?, updated_at = ?
		WHERE user_id = ? AND key = ? AND confidence <= ?`,
		t.Value, t.Confidence, now, t.UserID, t.Key, t.Confidence)
	if err != nil {
		return fmt.Errorf("memory: update trait: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO traits (user_id, key, value, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Key, t.Value, t.Confidence, now, now)
	if err != nil {
		return fmt.Errorf("memory: insert trait: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTraits(ctx context.Context, userID string, minConfidence float64) ([]models.Trait, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, key, value, confidence, created_at, updated_at
		FROM traits WHERE user_id = ? AND confidence >= ?
		ORDER BY updated_at DESC`, userID, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("memory: list traits: %w", err)
	}
	defer rows.Close()

	var out []models.Trait
	for rows.Next() {
		var t models.Trait
		if err := rows.Scan(&t.UserID, &t.Key, &t.Value, &t.Confidence, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan trait: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertEpisode(ctx context.Context, e models.Episode) error {
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("memory: marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, user_id, content, summary, confidence, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Content, e.Summary, e.Confidence, string(tagsJSON), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("memory: insert episode: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEpisodes(ctx context.Context, userID string, minConfidence float64, limit int) ([]models.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, summary, confidence, tags, created_at
		FROM episodes WHERE user_id = ? AND confidence >= ?
		ORDER BY created_at DESC LIMIT ?`, userID, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: list episodes: %w", err)
	}
	defer rows.Close()

	var out []models.Episode
	for rows.Next() {
		var e models.Episode
		var tagsJSON string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Content, &e.Summary, &e.Confidence, &tagsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan episode: %w", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) (int, int, error) {
	var traits, episodes int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traits WHERE user_id = ?`, userID).Scan(&traits); err != nil {
		return 0, 0, fmt.Errorf("memory: count traits: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes WHERE user_id = ?`, userID).Scan(&episodes); err != nil {
		return 0, 0, fmt.Errorf("memory: count episodes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM traits WHERE user_id = ?`, userID); err != nil {
		return 0, 0, fmt.Errorf("memory: delete traits: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE user_id = ?`, userID); err != nil {
		return 0, 0, fmt.Errorf("memory: delete episodes: %w", err)
	}
	return traits, episodes, nil
}
