package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"movie-discovery-search-service/internal/search"
)

// ErrSessionNotFound is returned for unknown, closed or foreign sessions.
var ErrSessionNotFound = errors.New("search session not found")

const defaultSessionIdleTTL = 30 * time.Minute

// HistoryFactory returns the history store for a user.
type HistoryFactory func(userID string) search.HistoryStore

// SessionRecorder receives controller outcomes and session counts.
type SessionRecorder interface {
	search.Recorder
	SessionOpened()
	SessionClosed()
}

// Session is one open search view.
type Session struct {
	ID         string
	UserID     string
	Controller *search.Controller

	lastSeen time.Time
}

// SessionService owns the lifetime of search sessions.
type SessionService struct {
	log      *slog.Logger
	catalog  search.Catalog
	history  HistoryFactory
	recorder SessionRecorder
	opts     search.Options
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. recorder may be nil.
func NewSessionService(logger *slog.Logger, catalog search.Catalog, history HistoryFactory, recorder SessionRecorder, opts search.Options, idleTTL time.Duration) *SessionService {
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	return &SessionService{
		log:      logger.With("component", "session_service"),
		catalog:  catalog,
		history:  history,
		recorder: recorder,
		opts:     opts,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for userID and loads its history snapshot.
func (s *SessionService) Create(ctx context.Context, userID string) *Session {
	var rec search.Recorder
	if s.recorder != nil {
		rec = s.recorder
	}

	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Controller: search.NewController(s.log, s.catalog, s.history(userID), rec, s.opts),
		lastSeen:   s.now(),
	}
	sess.Controller.RefreshHistory(ctx)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.SessionOpened()
	}
	s.log.Info("search session opened", "session_id", sess.ID, "user_id", userID)
	return sess
}

// Get returns the session id owned by userID and marks it as seen.
func (s *SessionService) Get(id, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Close tears down the session id owned by userID.
func (s *SessionService) Close(id, userID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.closeSession(sess, "closed")
	return nil
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many were closed.
func (s *SessionService) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.idleTTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.closeSession(sess, "expired")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (s *SessionService) Run(ctx context.Context) {
	interval := s.idleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.log.Info("swept idle search sessions", "count", n)
			}
		}
	}
}

// Shutdown closes every open session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.closeSession(sess, "shutdown")
	}
}

// Len returns the number of open sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) closeSession(sess *Session, reason string) {
	sess.Controller.Close()
	if s.recorder != nil {
		s.recorder.SessionClosed()
	}
	s.log.Info("search session closed", "session_id", sess.ID, "reason", reason)
}
