package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/session"
)

// SessionStore is a PostgreSQL-backed implementation of session.Store.
type SessionStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewSessionStore creates a new PostgreSQL session store.
func NewSessionStore(pool *pgxpool.Pool, schema string) *SessionStore {
	if schema == "" {
		schema = "public"
	}
	return &SessionStore{
		pool:   pool,
		schema: schema,
	}
}

func (s *SessionStore) sessionsTable() string {
	return fmt.Sprintf("%s.agent_sessions", s.schema)
}

func (s *SessionStore) messagesTable() string {
	return fmt.Sprintf("%s.agent_messages", s.schema)
}

// Ensure returns the session, creating an active one when missing.
func (s *SessionStore) Ensure(ctx context.Context, id, userID string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrInvalidID
	}
	if err := ensureSession(ctx, s.pool, s.schema, id, userID); err != nil {
		return nil, wrapError(err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrInvalidID
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, title, status, metadata, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.sessionsTable())

	sess, err := scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
		return nil, wrapError(err)
	}
	return sess, nil
}

// List returns sessions matching the filter, most recently updated first.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	whereClause, args := buildSessionWhere(filter)

	query := fmt.Sprintf(`
		SELECT id, user_id, title, status, metadata, created_at, updated_at
		FROM %s
		%s
		ORDER BY updated_at DESC, id
	`, s.sessionsTable(), whereClause)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// buildSessionWhere constructs the WHERE clause from filter.
func buildSessionWhere(filter session.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("updated_at >= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// SetStatus changes a session's status.
func (s *SessionStore) SetStatus(ctx context.Context, id string, status session.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", session.ErrInvalidStatus, status)
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = now() WHERE id = $1`, s.sessionsTable())
	result, err := s.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return wrapError(err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return nil
}

// AppendMessages appends transcript entries in one transaction.
func (s *SessionStore) AppendMessages(ctx context.Context, id string, msgs ...agent.Message) error {
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, role, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.messagesTable())
	touch := fmt.Sprintf(`UPDATE %s SET updated_at = $2 WHERE id = $1`, s.sessionsTable())

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		result, err := tx.Exec(ctx, touch, id, now)
		if err != nil {
			return wrapError(err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}

		batch := &pgx.Batch{}
		for _, m := range msgs {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal message: %w", err)
			}
			batch.Queue(insert, uuid.NewString(), id, string(m.Role), data, now)
		}
		return wrapError(tx.SendBatch(ctx, batch).Close())
	})
	return err
}

// Messages returns a session's transcript, oldest first.
func (s *SessionStore) Messages(ctx context.Context, id string) ([]session.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, session_id, message, created_at
		FROM %s
		WHERE session_id = $1
		ORDER BY seq
	`, s.messagesTable())

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var m session.Message
		var data []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &data, &m.CreatedAt); err != nil {
			return nil, wrapError(err)
		}
		if err := json.Unmarshal(data, &m.Message); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	var title *string
	var status string
	var metadata []byte

	if err := row.Scan(&sess.ID, &sess.UserID, &title, &status, &metadata, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if title != nil {
		sess.Title = *title
	}
	sess.Status = session.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		if len(sess.Metadata) == 0 {
			sess.Metadata = nil
		}
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return &sess, nil
}

var _ session.Store = (*SessionStore)(nil)
