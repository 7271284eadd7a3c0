package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/orbit/domain/toolcall"
)

// ToolCallRepository is a PostgreSQL-backed implementation of
// toolcall.Repository.
type ToolCallRepository struct {
	pool   *pgxpool.Pool
	schema string
}

// NewToolCallRepository creates a new PostgreSQL tool-call repository.
func NewToolCallRepository(pool *pgxpool.Pool, schema string) *ToolCallRepository {
	if schema == "" {
		schema = "public"
	}
	return &ToolCallRepository{
		pool:   pool,
		schema: schema,
	}
}

func (r *ToolCallRepository) tableName() string {
	return fmt.Sprintf("%s.agent_tool_calls", r.schema)
}

// Create stores a PENDING call.
func (r *ToolCallRepository) Create(ctx context.Context, sessionID, toolName string, inputs json.RawMessage) (string, error) {
	if len(inputs) == 0 {
		inputs = json.RawMessage(`{}`)
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, tool_name, inputs, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, r.tableName())

	if _, err := r.pool.Exec(ctx, query, id, sessionID, toolName, []byte(inputs), string(toolcall.StatusPending), now); err != nil {
		return "", wrapError(err)
	}
	return id, nil
}

// MarkRunning moves a call to RUNNING.
func (r *ToolCallRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, id, toolcall.StatusRunning, "", nil)
}

// MarkCompleted records the outputs and duration.
func (r *ToolCallRepository) MarkCompleted(ctx context.Context, id string, outputs json.RawMessage, durationMs int64) error {
	if len(outputs) == 0 {
		outputs = json.RawMessage(`null`)
	}
	return r.update(ctx, id, toolcall.StatusCompleted, "outputs = $3, execution_time_ms = $4", []any{[]byte(outputs), durationMs})
}

// MarkFailed records the failure message.
func (r *ToolCallRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	return r.update(ctx, id, toolcall.StatusFailed, "error_message = $3", []any{errorMessage})
}

// update checks the transition under a row lock and applies set.
func (r *ToolCallRepository) update(ctx context.Context, id string, to toolcall.Status, set string, args []any) error {
	if id == "" {
		return toolcall.ErrInvalidID
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = $1 FOR UPDATE`, r.tableName()), id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
			}
			return wrapError(err)
		}
		from := toolcall.Status(current)
		if err := toolcall.CheckTransition(from, to); err != nil {
			return err
		}
		if from == to {
			return nil
		}

		assignments := "status = $2, updated_at = now()"
		if set != "" {
			assignments += ", " + set
		}
		query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, r.tableName(), assignments)
		if _, err := tx.Exec(ctx, query, append([]any{id, string(to)}, args...)...); err != nil {
			return wrapError(err)
		}
		return nil
	})
}

// Get retrieves a call by id.
func (r *ToolCallRepository) Get(ctx context.Context, id string) (*toolcall.Record, error) {
	if id == "" {
		return nil, toolcall.ErrInvalidID
	}

	query := fmt.Sprintf(`
		SELECT id, session_id, tool_name, inputs, outputs, error_message, status, execution_time_ms, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tableName())

	rec, err := scanToolCall(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
		}
		return nil, wrapError(err)
	}
	return rec, nil
}

// ListBySession returns a session's calls, oldest first.
func (r *ToolCallRepository) ListBySession(ctx context.Context, sessionID string) ([]*toolcall.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, tool_name, inputs, outputs, error_message, status, execution_time_ms, created_at, updated_at
		FROM %s
		WHERE session_id = $1
		ORDER BY seq
	`, r.tableName())

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []*toolcall.Record
	for rows.Next() {
		rec, err := scanToolCall(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func scanToolCall(row pgx.Row) (*toolcall.Record, error) {
	var rec toolcall.Record
	var inputs, outputs []byte
	var errMsg *string
	var status string
	var ms *int64

	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.ToolName, &inputs, &outputs, &errMsg, &status, &ms, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Inputs = inputs
	if len(outputs) > 0 {
		rec.Outputs = outputs
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if ms != nil {
		rec.ExecutionTimeMs = *ms
	}
	rec.Status = toolcall.Status(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

var _ toolcall.Repository = (*ToolCallRepository)(nil)
