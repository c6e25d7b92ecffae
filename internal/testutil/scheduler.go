package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// ManualScheduler is a game.Scheduler driven by an explicit virtual clock.
//
// Tasks never run on their own; Advance moves the clock forward and runs every
// task whose deadline has been reached, earliest first (ties in scheduling
// order). Tasks run on the goroutine that calls Advance.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int64
	tasks []*manualTask
}

type manualTask struct {
	s       *ManualScheduler
	at      time.Duration
	seq     int64
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler whose clock starts at 0.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements game.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) game.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{s: s, at: s.now + d, seq: s.seq, fn: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Stop implements game.Timer.
func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs the tasks that became due,
// including tasks scheduled by those tasks if they also fall within d.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		t := s.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// popDue removes and returns the earliest live task due at or before target,
// moving the clock to its deadline.
func (s *ManualScheduler) popDue(target time.Duration) *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at != s.tasks[j].at {
			return s.tasks[i].at < s.tasks[j].at
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})

	if len(s.tasks) == 0 || s.tasks[0].at > target {
		return nil
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	t.fired = true
	s.now = t.at
	return t
}

// Pending is the number of tasks neither fired nor stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Now is the current virtual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
