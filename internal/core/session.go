package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"triage-sim/internal/llm"
	"triage-sim/pkg"

	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists signals a session id collision on insert.  The engine
	// generates ids, so hitting this is a logic error.
	ErrSessionExists = errors.New("session already exists")
)

// Session is the mutable per-conversation state.  Its case identity and
// conversation handle never change after creation; only Score moves, and only
// by applying the delta parsed from a turn.  Turns within one session are
// serialized through mu because the conversation handle is not reentrant.
type Session struct {
	ID          string
	Profile     *pkg.CaseProfile
	Conv        llm.Conversation
	Score       int
	ArrivalTime time.Time

	// mu serializes Advance calls for this session.
	mu sync.Mutex

	// lastActive is guarded by the owning Store's lock.
	lastActive time.Time
}

// Store keeps live sessions in memory for the lifetime of the process.  It
// is safe for concurrent create/lookup across different session ids.  An
// optional sweeper evicts sessions idle longer than the TTL and closes their
// conversation handles.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl    time.Duration
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewStore constructs an empty session store.  Sessions idle longer than ttl
// become eligible for eviction once StartSweeper is running.
func NewStore(ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// Create inserts a new session.  The id must not already be present.
func (s *Store) Create(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	sess.lastActive = time.Now()
	s.sessions[sess.ID] = sess
	return nil
}

// Get returns the session for id and marks it active, extending its TTL.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastActive = time.Now()
	return sess, nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper runs a background goroutine that periodically evicts expired
// sessions.  Call Stop to terminate it.
func (s *Store) StartSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.sweepExpired(time.Now()); n > 0 {
					s.logger.Info().Int("evicted", n).Msg("session sweep")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine, if one is running.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// sweepExpired removes sessions idle past the TTL and returns how many were
// evicted.  Conversation handles are closed outside the store lock.
func (s *Store) sweepExpired(now time.Time) int {
	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActive) > s.ttl {
			delete(s.sessions, id)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		if err := sess.Conv.Close(); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("close evicted conversation")
		}
	}
	return len(expired)
}
