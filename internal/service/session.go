package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/chatgate/internal/domain"
)

// SessionRepository persists the durable part of a session: credentials,
// thread handle and message log. Uploads stay in memory.
type SessionRepository interface {
	LoadSession(ctx context.Context, key string) (*domain.Session, error)
	CreateSession(ctx context.Context, sess *domain.Session) error
	SaveThread(ctx context.Context, key, threadID string, synced int) error
	SaveToken(ctx context.Context, key, token string) error
	AppendMessages(ctx context.Context, key string, msgs []domain.Message) error
	DeleteSession(ctx context.Context, key string) error
}

type sessionEntry struct {
	sess *domain.Session
	busy bool
}

// SessionService owns every live session. The map is guarded; a session
// itself is only touched between TryBegin and End, which admit one caller
// at a time.
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	repo     SessionRepository
	greeting string
	now      func() time.Time
}

// NewSessionService creates the service. repo may be nil, in which case
// sessions live only as long as the process.
func NewSessionService(repo SessionRepository, greeting string) *SessionService {
	return &SessionService{
		sessions: make(map[string]*sessionEntry),
		repo:     repo,
		greeting: greeting,
		now:      time.Now,
	}
}

// FindOrCreate returns the session for key, restoring it from the
// repository or starting a new one with the greeting.
func (s *SessionService) FindOrCreate(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(ctx, key, true)
	if err != nil {
		return nil, err
	}
	return e.sess, nil
}

// Create starts a fresh session under key.
func (s *SessionService) Create(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.newSession(key)
	if s.repo != nil {
		if err := s.repo.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	s.sessions[key] = &sessionEntry{sess: sess}
	return sess, nil
}

// TryBegin claims the session for one operation. It fails with
// domain.ErrTurnInProgress while another claim is held. With create=false an
// unknown key yields domain.ErrSessionNotFound.
func (s *SessionService) TryBegin(ctx context.Context, key string, create bool) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(ctx, key, create)
	if err != nil {
		return nil, err
	}
	if e.busy {
		return nil, domain.ErrTurnInProgress
	}
	e.busy = true
	return e.sess, nil
}

// End releases a claim taken with TryBegin.
func (s *SessionService) End(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[key]; ok {
		e.busy = false
	}
}

// Reset replaces the conversation under key with a new one. The access token
// and API key carry over; the thread, log and uploads do not.
func (s *SessionService) Reset(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.sessions[key]
	if ok && old.busy {
		return nil, domain.ErrTurnInProgress
	}
	sess := s.newSession(key)
	if ok {
		sess.Token = old.sess.Token
		sess.APIKey = old.sess.APIKey
	}
	if s.repo != nil {
		if err := s.repo.DeleteSession(ctx, key); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
		if err := s.repo.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	s.sessions[key] = &sessionEntry{sess: sess}
	return sess, nil
}

// SetToken stores the access token presented for the session.
func (s *SessionService) SetToken(ctx context.Context, sess *domain.Session, token string) error {
	sess.Token = token
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveToken(ctx, sess.Key, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Persist writes what changed since the snapshot: a new thread handle or
// sync position, and messages appended since.
func (s *SessionService) Persist(ctx context.Context, sess *domain.Session, snap Snapshot) error {
	if s.repo == nil {
		return nil
	}
	if sess.ThreadID != snap.ThreadID || sess.Synced != snap.Synced {
		if err := s.repo.SaveThread(ctx, sess.Key, sess.ThreadID, sess.Synced); err != nil {
			return fmt.Errorf("save thread: %w", err)
		}
	}
	if len(sess.Messages) > snap.Messages {
		if err := s.repo.AppendMessages(ctx, sess.Key, sess.Messages[snap.Messages:]); err != nil {
			return fmt.Errorf("append messages: %w", err)
		}
	}
	return nil
}

// Snapshot marks the persisted state of a session before a turn.
type Snapshot struct {
	ThreadID string
	Synced   int
	Messages int
}

func TakeSnapshot(sess *domain.Session) Snapshot {
	return Snapshot{ThreadID: sess.ThreadID, Synced: sess.Synced, Messages: len(sess.Messages)}
}

func (s *SessionService) entry(ctx context.Context, key string, create bool) (*sessionEntry, error) {
	if e, ok := s.sessions[key]; ok {
		return e, nil
	}
	if s.repo != nil {
		sess, err := s.repo.LoadSession(ctx, key)
		if err == nil {
			e := &sessionEntry{sess: sess}
			s.sessions[key] = e
			return e, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	if !create {
		return nil, domain.ErrSessionNotFound
	}
	sess := s.newSession(key)
	if s.repo != nil {
		if err := s.repo.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	e := &sessionEntry{sess: sess}
	s.sessions[key] = e
	slog.Debug("session started", "session", key)
	return e, nil
}

func (s *SessionService) newSession(key string) *domain.Session {
	now := s.now()
	sess := &domain.Session{Key: key, CreatedAt: now}
	if s.greeting != "" {
		sess.Messages = append(sess.Messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   s.greeting,
			CreatedAt: now,
		})
	}
	return sess
}
