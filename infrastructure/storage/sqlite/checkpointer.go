package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// Checkpointer is a SQLite-backed implementation of checkpoint.Saver.
type Checkpointer struct {
	db *sql.DB
}

// NewCheckpointer creates a new SQLite checkpointer with the given configuration.
func NewCheckpointer(cfg Config, opts ...Option) (*Checkpointer, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Checkpointer{db: db}
	if cfg.AutoMigrate {
		if err := c.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewCheckpointerFromDB creates a checkpointer from an existing database connection.
func NewCheckpointerFromDB(db *sql.DB) (*Checkpointer, error) {
	c := &Checkpointer{db: db}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// migrate creates the checkpoints table if it doesn't exist.
func (c *Checkpointer) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			thread_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			state BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, seq);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (c *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Config{}, err
	}

	cp, err := checkpoint.New(cfg, state, meta)
	if err != nil {
		return checkpoint.Config{}, err
	}
	blob, err := checkpoint.MarshalState(cp)
	if err != nil {
		return checkpoint.Config{}, fmt.Errorf("marshal checkpoint: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, thread_id, session_id, state, created_at) VALUES (?, ?, ?, ?, ?)`,
		cp.ID, cp.ThreadID, cp.SessionID, blob, cp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return checkpoint.Config{}, err
	}
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (c *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}

	var row *sql.Row
	if cfg.CheckpointID != "" {
		row = c.db.QueryRowContext(ctx,
			`SELECT id, thread_id, session_id, state, created_at FROM checkpoints
			 WHERE id = ? AND (? = '' OR thread_id = ?)`,
			cfg.CheckpointID, cfg.ThreadID, cfg.ThreadID,
		)
	} else {
		row = c.db.QueryRowContext(ctx,
			`SELECT id, thread_id, session_id, state, created_at FROM checkpoints
			 WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
			cfg.ThreadID,
		)
	}

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)
	}
	return cp, err
}

// List returns up to opts.Limit checkpoints in chronological order.
func (c *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := `SELECT id, thread_id, session_id, state, created_at FROM checkpoints WHERE thread_id = ?`
	args := []any{threadID}
	if opts.Before != "" {
		query += ` AND seq < (SELECT seq FROM checkpoints WHERE id = ?)`
		args = append(args, opts.Before)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, opts.EffectiveLimit())

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var desc []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		desc = append(desc, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return checkpoint.Chronological(desc), nil
}

// Close closes the database connection.
func (c *Checkpointer) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var blob []byte
	var created int64
	if err := row.Scan(&cp.ID, &cp.ThreadID, &cp.SessionID, &blob, &created); err != nil {
		return nil, err
	}
	if err := checkpoint.UnmarshalState(blob, &cp); err != nil {
		return nil, err
	}
	cp.CreatedAt = time.Unix(0, created).UTC()
	return &cp, nil
}

var _ checkpoint.Saver = (*Checkpointer)(nil)
