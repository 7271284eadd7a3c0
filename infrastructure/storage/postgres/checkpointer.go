package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Checkpointer is a PostgreSQL-backed implementation of checkpoint.Saver.
// Put also ensures the owning session row exists.
type Checkpointer struct {
	pool   *pgxpool.Pool
	schema string
}

// NewCheckpointer creates a new PostgreSQL checkpointer.
func NewCheckpointer(pool *pgxpool.Pool, schema string) *Checkpointer {
	if schema == "" {
		schema = "public"
	}
	return &Checkpointer{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (s *Checkpointer) tableName() string {
	return fmt.Sprintf("%s.agent_checkpoints", s.schema)
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (s *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	cp, err := checkpoint.New(cfg, state, meta)
	if err != nil {
		return checkpoint.Config{}, err
	}
	blob, err := checkpoint.MarshalState(cp)
	if err != nil {
		return checkpoint.Config{}, fmt.Errorf("marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, thread_id, session_id, state, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.tableName())

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureSession(ctx, tx, s.schema, cp.SessionID, state.UserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, query, cp.ID, cp.ThreadID, cp.SessionID, blob, cp.CreatedAt)
		return err
	})
	if err != nil {
		return checkpoint.Config{}, wrapError(err)
	}
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (s *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}

	var row pgx.Row
	if cfg.CheckpointID != "" {
		row = s.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT id, thread_id, session_id, state, created_at
			FROM %s
			WHERE id = $1 AND ($2 = '' OR thread_id = $2)
		`, s.tableName()), cfg.CheckpointID, cfg.ThreadID)
	} else {
		row = s.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT id, thread_id, session_id, state, created_at
			FROM %s
			WHERE thread_id = $1
			ORDER BY seq DESC
			LIMIT 1
		`, s.tableName()), cfg.ThreadID)
	}

	cp, err := scanCheckpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)
		}
		return nil, err
	}
	return cp, nil
}

// List returns up to opts.Limit checkpoints in chronological order.
func (s *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	args := []any{threadID}
	where := "thread_id = $1"
	if opts.Before != "" {
		args = append(args, opts.Before)
		where += fmt.Sprintf(" AND seq < (SELECT seq FROM %s WHERE id = $2)", s.tableName())
	}
	args = append(args, opts.EffectiveLimit())

	query := fmt.Sprintf(`
		SELECT id, thread_id, session_id, state, created_at
		FROM %s
		WHERE %s
		ORDER BY seq DESC
		LIMIT $%d
	`, s.tableName(), where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var desc []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		desc = append(desc, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return checkpoint.Chronological(desc), nil
}

func scanCheckpoint(row pgx.Row) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var blob []byte
	if err := row.Scan(&cp.ID, &cp.ThreadID, &cp.SessionID, &blob, &cp.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrapError(err)
	}
	if err := checkpoint.UnmarshalState(blob, &cp); err != nil {
		return nil, err
	}
	cp.CreatedAt = cp.CreatedAt.UTC()
	return &cp, nil
}

var _ checkpoint.Saver = (*Checkpointer)(nil)
