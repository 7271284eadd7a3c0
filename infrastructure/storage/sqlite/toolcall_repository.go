package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/toolcall"
)

// ToolCallRepository is a SQLite-backed implementation of toolcall.Repository.
type ToolCallRepository struct {
	db *sql.DB
}

// NewToolCallRepository creates a new SQLite tool-call repository.
func NewToolCallRepository(cfg Config, opts ...Option) (*ToolCallRepository, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	r := &ToolCallRepository{db: db}
	if cfg.AutoMigrate {
		if err := r.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return r, nil
}

// NewToolCallRepositoryFromDB creates a repository from an existing database connection.
func NewToolCallRepositoryFromDB(db *sql.DB) (*ToolCallRepository, error) {
	r := &ToolCallRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ToolCallRepository) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			inputs BLOB NOT NULL,
			outputs BLOB,
			error_message TEXT,
			status TEXT NOT NULL,
			execution_time_ms INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, seq);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_status ON tool_calls(status);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Create stores a PENDING call.
func (r *ToolCallRepository) Create(ctx context.Context, sessionID, toolName string, inputs json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(inputs) == 0 {
		inputs = json.RawMessage(`{}`)
	}

	id := uuid.NewString()
	now := time.Now().UnixNano()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, session_id, tool_name, inputs, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, toolName, []byte(inputs), string(toolcall.StatusPending), now, now,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkRunning moves a call to RUNNING.
func (r *ToolCallRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, id, toolcall.StatusRunning, "", nil)
}

// MarkCompleted records the outputs and duration.
func (r *ToolCallRepository) MarkCompleted(ctx context.Context, id string, outputs json.RawMessage, durationMs int64) error {
	return r.update(ctx, id, toolcall.StatusCompleted, "outputs = ?, execution_time_ms = ?", []any{[]byte(outputs), durationMs})
}

// MarkFailed records the failure message.
func (r *ToolCallRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	return r.update(ctx, id, toolcall.StatusFailed, "error_message = ?", []any{errorMessage})
}

func (r *ToolCallRepository) update(ctx context.Context, id string, to toolcall.Status, set string, args []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return toolcall.ErrInvalidID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tool_calls WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	from := toolcall.Status(current)
	if err := toolcall.CheckTransition(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	assignments := "status = ?, updated_at = ?"
	if set != "" {
		assignments += ", " + set
	}
	params := append([]any{string(to), time.Now().UnixNano()}, args...)
	params = append(params, id)
	if _, err := tx.ExecContext(ctx, `UPDATE tool_calls SET `+assignments+` WHERE id = ?`, params...); err != nil {
		return err
	}
	return tx.Commit()
}

// Get retrieves a call by id.
func (r *ToolCallRepository) Get(ctx context.Context, id string) (*toolcall.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, toolcall.ErrInvalidID
	}

	rec, err := scanToolCall(r.db.QueryRowContext(ctx, selectToolCalls+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
	}
	return rec, err
}

// ListBySession returns a session's calls, oldest first.
func (r *ToolCallRepository) ListBySession(ctx context.Context, sessionID string) ([]*toolcall.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectToolCalls+` WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*toolcall.Record
	for rows.Next() {
		rec, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (r *ToolCallRepository) Close() error {
	return r.db.Close()
}

const selectToolCalls = `SELECT id, session_id, tool_name, inputs, outputs, error_message, status,
	execution_time_ms, created_at, updated_at FROM tool_calls`

func scanToolCall(row scanner) (*toolcall.Record, error) {
	var rec toolcall.Record
	var inputs, outputs []byte
	var errMsg sql.NullString
	var status string
	var ms sql.NullInt64
	var created, updated int64

	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.ToolName, &inputs, &outputs, &errMsg, &status, &ms, &created, &updated); err != nil {
		return nil, err
	}
	rec.Inputs = inputs
	if len(outputs) > 0 {
		rec.Outputs = outputs
	}
	rec.ErrorMessage = errMsg.String
	rec.ExecutionTimeMs = ms.Int64
	rec.Status = toolcall.Status(status)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

var _ toolcall.Repository = (*ToolCallRepository)(nil)
