package database

import (
	"database/sql"
	"fmt"
)

// Schema for the match history store. One table; applied idempotently at open.
const createMatchesTable = `
CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	game_id     TEXT NOT NULL,
	host_name   TEXT NOT NULL,
	guest_name  TEXT NOT NULL,
	left_score  INTEGER NOT NULL,
	right_score INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL
);
`

const createMatchesEndedAtIndex = `
CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at DESC);
`

// ApplySchema creates the match history tables and indexes.
func ApplySchema(db *sql.DB) error {
	for _, stmt := range []string{createMatchesTable, createMatchesEndedAtIndex} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
