package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// Session is one client's game: an engine plus bookkeeping for its rounds.
// Rounds are numbered by the engine (Snapshot.Round).
type Session struct {
	ID     string
	Engine *game.Engine

	mu       sync.Mutex
	lastSeen time.Time
	starts   map[int]time.Time
	recorded int
}

// NewSession wraps e in a session with a fresh ID; e's current round starts at now.
func NewSession(e *game.Engine, now time.Time) *Session {
	s := &Session{ID: uuid.NewString(), Engine: e, lastSeen: now, starts: make(map[int]time.Time)}
	s.starts[e.Snapshot().Round] = now
	return s
}

// StartRound stamps the start time of round.
func (s *Session) StartRound(round int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.starts[round]; !ok && round > s.recorded {
		s.starts[round] = now
	}
}

// FinishRound reports the elapsed time of round the first time it finishes.
// Later calls for the same or an earlier round return ok=false.
func (s *Session) FinishRound(round int, now time.Time) (elapsed time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if round <= s.recorded {
		return 0, false
	}
	s.recorded = round
	if start, seen := s.starts[round]; seen {
		elapsed = now.Sub(start)
	}
	for r := range s.starts {
		if r <= round {
			delete(s.starts, r)
		}
	}
	return elapsed, true
}

// LastSeen is the last time the session was saved or fetched.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}
