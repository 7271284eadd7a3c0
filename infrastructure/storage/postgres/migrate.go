package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements creates the orbit tables. %[1]s is the schema.
var statements = []string{
	`CREATE SCHEMA IF NOT EXISTS %[1]s`,
	`CREATE TABLE IF NOT EXISTS %[1]s.agent_sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT,
		status     TEXT NOT NULL DEFAULT 'active',
		metadata   JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_agent_sessions_user_id ON %[1]s.agent_sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.agent_messages (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL REFERENCES %[1]s.agent_sessions (id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		message    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_messages_session ON %[1]s.agent_messages (session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.agent_tool_calls (
		seq               BIGSERIAL,
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL,
		tool_name         TEXT NOT NULL,
		inputs            JSONB NOT NULL,
		outputs           JSONB,
		error_message     TEXT,
		status            TEXT NOT NULL,
		execution_time_ms BIGINT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_agent_tool_calls_session_id ON %[1]s.agent_tool_calls (session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.agent_checkpoints (
		seq        BIGSERIAL,
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES %[1]s.agent_sessions (id) ON DELETE CASCADE,
		state      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_agent_checkpoints_thread ON %[1]s.agent_checkpoints (thread_id, seq)`,
}

// Migrate creates the schema and tables when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if schema == "" {
		schema = "public"
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, fmt.Sprintf(stmt, schema)); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}
	return nil
}

// ensureSession inserts an active session row unless one exists.
func ensureSession(ctx context.Context, q execer, schema, id, userID string) error {
	_, err := q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.agent_sessions (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, schema), id, userID)
	return err
}
