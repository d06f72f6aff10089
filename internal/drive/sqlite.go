package drive

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// SQLiteBacking persists drive states with modernc.org/sqlite, the same
// pure-Go driver the memory service's trait/episode store uses.
type SQLiteBacking struct {
	db *sql.DB
}

// OpenSQLiteBacking opens (creating if necessary) the drive_states table
// at path.
func OpenSQLiteBacking(path string) (*SQLiteBacking, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("drive: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS drive_states (
		user_id TEXT PRIMARY KEY,
		energy REAL NOT NULL,
		sociability REAL NOT NULL,
		curiosity REAL NOT NULL,
		empathy_reserve REAL NOT NULL,
		novelty_seek REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("drive: init schema: %w", err)
	}
	return &SQLiteBacking{db: db}, nil
}

func (b *SQLiteBacking) Close() error { return b.db.Close() }

func (b *SQLiteBacking) Load(ctx context.Context, userID string) (models.DriveState, bool, error) {
	var state models.DriveState
	err := b.db.QueryRowContext(ctx, `
		SELECT user_id, energy, sociability, curiosity, empathy_reserve, novelty_seek, updated_at
		FROM drive_states WHERE user_id = ?`, userID).
		Scan(&state.UserID, &state.Energy, &state.Sociability, &state.Curiosity,
			&state.EmpathyReserve, &state.NoveltySeek, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.DriveState{}, false, nil
	}
	if err != nil {
		return models.DriveState{}, false, fmt.Errorf("drive: load state: %w", err)
	}
	return state, true, nil
}

func (b *SQLiteBacking) Save(ctx context.Context, state models.DriveState) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO drive_states (user_id, energy, sociability, curiosity, empathy_reserve, novelty_seek, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			energy = excluded.energy,
			sociability = excluded.sociability,
			curiosity = excluded.curiosity,
			empathy_reserve = excluded.empathy_reserve,
			novelty_seek = excluded.novelty_seek,
			updated_at = excluded.updated_at`,
		state.UserID, state.Energy, state.Sociability, state.Curiosity,
		state.EmpathyReserve, state.NoveltySeek, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("drive: save state: %w", err)
	}
	return nil
}
