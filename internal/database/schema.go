package database

import (
	"context"
	"fmt"
)

// schemaStatements create the registry tables if they do not exist.
// The two CHECK constraints on datasets mirror the lifecycle invariants:
// status is one of four values, and a non-zero score implies ready.
//
// manifest and stats are uploaded documents kept as JSON text. jsonb refuses
// the \u0000 escape, which is valid JSON.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS robot_types (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		robot_type_id       TEXT NOT NULL REFERENCES robot_types (id),
		skill_id            TEXT REFERENCES skills (id),
		storage_path        TEXT NOT NULL,
		format_version      TEXT NOT NULL DEFAULT '',
		fps                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_frames        BIGINT NOT NULL DEFAULT 0,
		total_duration      DOUBLE PRECISION NOT NULL DEFAULT 0,
		demonstration_count BIGINT NOT NULL DEFAULT 0,
		quality_score       INTEGER NOT NULL DEFAULT 0,
		quality_breakdown   JSONB,
		manifest            JSON,
		stats               JSON,
		status              TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		CONSTRAINT datasets_status_check
			CHECK (status IN ('uploading', 'validating', 'ready', 'failed')),
		CONSTRAINT datasets_score_check
			CHECK (quality_score BETWEEN 0 AND 100 AND (status = 'ready' OR quality_score = 0))
	)`,
	`ALTER TABLE datasets ALTER COLUMN manifest TYPE JSON USING manifest::json`,
	`ALTER TABLE datasets ALTER COLUMN stats TYPE JSON USING stats::json`,
	`CREATE INDEX IF NOT EXISTS datasets_status_updated_idx ON datasets (status, updated_at)`,
	`CREATE INDEX IF NOT EXISTS datasets_robot_type_idx ON datasets (robot_type_id)`,
	`CREATE INDEX IF NOT EXISTS datasets_skill_idx ON datasets (skill_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
