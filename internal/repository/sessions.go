package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/chatgate/internal/domain"
)

const (
	getSession = `
SELECT token, thread_id, synced, created_at
FROM chat_sessions
WHERE key = $1`

	listSessionMessages = `
SELECT role, content, created_at
FROM session_messages
WHERE session_key = $1
ORDER BY id`

	upsertSession = `
INSERT INTO chat_sessions (key, token, thread_id, synced, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE
SET token = EXCLUDED.token,
    thread_id = EXCLUDED.thread_id,
    synced = EXCLUDED.synced,
    updated_at = NOW()`

	updateSessionThread = `
UPDATE chat_sessions
SET thread_id = $2, synced = $3, updated_at = NOW()
WHERE key = $1`

	updateSessionToken = `
UPDATE chat_sessions
SET token = $2, updated_at = NOW()
WHERE key = $1`

	deleteSessionMessages = `DELETE FROM session_messages WHERE session_key = $1`

	deleteSession = `DELETE FROM chat_sessions WHERE key = $1`
)

// SessionRepository stores sessions and their message logs in PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) LoadSession(ctx context.Context, key string) (*domain.Session, error) {
	sess := &domain.Session{Key: key}
	err := r.pool.QueryRow(ctx, getSession, key).Scan(&sess.Token, &sess.ThreadID, &sess.Synced, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := r.pool.Query(ctx, listSessionMessages, key)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	sess.Messages, err = pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	if sess.Synced > len(sess.Messages) {
		sess.Synced = len(sess.Messages)
	}
	return sess, nil
}

// CreateSession writes sess and its seeded messages, replacing any previous
// row under the same key.
func (r *SessionRepository) CreateSession(ctx context.Context, sess *domain.Session) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertSession, sess.Key, sess.Token, sess.ThreadID, sess.Synced, sess.CreatedAt); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteSessionMessages, sess.Key); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		return insertMessages(ctx, tx, sess.Key, sess.Messages)
	})
}

func (r *SessionRepository) SaveThread(ctx context.Context, key, threadID string, synced int) error {
	tag, err := r.pool.Exec(ctx, updateSessionThread, key, threadID, synced)
	if err != nil {
		return fmt.Errorf("update thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) SaveToken(ctx context.Context, key, token string) error {
	tag, err := r.pool.Exec(ctx, updateSessionToken, key, token)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) AppendMessages(ctx context.Context, key string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertMessages(ctx, tx, key, msgs)
	})
}

func (r *SessionRepository) DeleteSession(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, deleteSession, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, key string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"session_messages"},
		[]string{"session_key", "role", "content", "created_at"},
		pgx.CopyFromSlice(len(msgs), func(i int) ([]any, error) {
			m := msgs[i]
			return []any{key, string(m.Role), m.Content, m.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}
	return nil
}

func scanMessage(row pgx.CollectableRow) (domain.Message, error) {
	var (
		m    domain.Message
		role string
	)
	err := row.Scan(&role, &m.Content, &m.CreatedAt)
	m.Role = domain.Role(role)
	return m, err
}
