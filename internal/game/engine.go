// internal/game/engine.go
//
// Core game engine for a single Memory session.
// Responsibilities:
//   - Build shuffled, fully paired decks from a symbol alphabet.
//   - Apply card selections: flip, buffer up to two, resolve match/mismatch.
//   - Track score/attempts/matches; score never drops below zero.
//   - Sequence the two timed transitions: reset shuffle-in and mismatch flip-back.
//
// Notes:
//   - All mutations (commands and timed steps) run under one mutex, so the
//     engine behaves as a single control thread.
//   - Timed steps carry the generation they were scheduled in. Reset bumps the
//     generation and stops pending timers; a step that fires late is dropped.
//   - Listeners receive a Snapshot after every state change, outside the lock.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFlipBackDelay = time.Second
	DefaultShuffleDelay  = 200 * time.Millisecond

	matchPoints     = 2
	mismatchPenalty = 1
)

// ErrIndexOutOfRange is returned by Select for positions outside the deck.
var ErrIndexOutOfRange = errors.New("card index out of range")

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Symbols       []string
	FlipBackDelay time.Duration
	ShuffleDelay  time.Duration
	Scheduler     Scheduler
	Rand          *rand.Rand
	Logger        *zerolog.Logger
}

// Engine owns one game's deck, selection buffer and counters.
type Engine struct {
	mu sync.Mutex

	symbols       []string
	flipBackDelay time.Duration
	shuffleDelay  time.Duration
	sched         Scheduler
	rng           *rand.Rand
	log           zerolog.Logger

	cards    []Card
	selected []int
	score    int
	attempts int
	matches  int

	round       int
	seq         int64
	generation  uint64
	swapPending bool
	nextTimer   uint64
	timers      map[uint64]Timer
	closed      bool

	lmu       sync.Mutex
	listeners []listener
	nextLsn   int
}

// New constructs an engine and performs the initial Reset.
// The first deck becomes visible after the shuffle delay.
func New(opts Options) (*Engine, error) {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if err := ValidateAlphabet(symbols); err != nil {
		return nil, err
	}
	e := &Engine{
		symbols:       append([]string(nil), symbols...),
		flipBackDelay: opts.FlipBackDelay,
		shuffleDelay:  opts.ShuffleDelay,
		sched:         opts.Scheduler,
		rng:           opts.Rand,
		timers:        make(map[uint64]Timer),
	}
	if e.flipBackDelay <= 0 {
		e.flipBackDelay = DefaultFlipBackDelay
	}
	if e.shuffleDelay <= 0 {
		e.shuffleDelay = DefaultShuffleDelay
	}
	if e.sched == nil {
		e.sched = WallScheduler{}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger != nil {
		e.log = opts.Logger.With().Str("component", "engine").Logger()
	} else {
		e.log = log.With().Str("component", "engine").Logger()
	}
	e.Reset()
	return e, nil
}

// Reset starts a new round.
//
// Phase 1 runs now: every displayed card is turned face down and the
// selection and counters are cleared. Phase 2 runs after the shuffle delay and
// installs a freshly built deck, shuffled a second time. Selections made
// between the two phases are ignored.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.stopTimersLocked()
	e.generation++

	fresh := NewDeck(e.symbols, e.rng)
	for i := range e.cards {
		e.cards[i].IsFlipped = false
	}
	e.selected = e.selected[:0]
	e.score, e.attempts, e.matches = 0, 0, 0
	e.swapPending = true
	e.round++

	e.scheduleLocked(e.shuffleDelay, func() {
		shuffle(fresh, e.rng)
		e.cards = fresh
		e.swapPending = false
		e.log.Debug().Int("cards", len(fresh)).Msg("deck installed")
	})
	gen := e.generation
	snap := e.commitLocked()
	e.mu.Unlock()

	e.log.Debug().Uint64("generation", gen).Msg("reset")
	e.publish(snap)
}

// Select flips the card at index and resolves the turn once two cards are up.
//
// Selecting a matched or face-up card is a no-op, as is any selection while a
// reset is still installing its deck. An index outside the deck returns
// ErrIndexOutOfRange and leaves the state untouched.
func (e *Engine) Select(index int) error {
	e.mu.Lock()
	if e.closed || e.swapPending {
		e.mu.Unlock()
		return nil
	}
	if index < 0 || index >= len(e.cards) {
		n := len(e.cards)
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}
	c := &e.cards[index]
	if c.IsMatched || c.IsFlipped {
		e.mu.Unlock()
		return nil
	}

	c.IsFlipped = true
	e.selected = append(e.selected, index)
	if len(e.selected) == 2 {
		e.attempts++
		e.resolveLocked()
	}
	snap := e.commitLocked()
	e.mu.Unlock()

	e.publish(snap)
	return nil
}

// resolveLocked compares the two selected cards and empties the buffer.
// A mismatch schedules the flip-back for the two indices captured here.
func (e *Engine) resolveLocked() {
	first, second := e.selected[0], e.selected[1]
	e.selected = e.selected[:0]

	if e.cards[first].Content == e.cards[second].Content {
		e.cards[first].IsMatched = true
		e.cards[second].IsMatched = true
		e.score += matchPoints
		e.matches++
		e.log.Debug().Int("first", first).Int("second", second).Int("matches", e.matches).Msg("match")
		return
	}

	e.log.Debug().Int("first", first).Int("second", second).Msg("mismatch")
	e.scheduleLocked(e.flipBackDelay, func() {
		for _, i := range [2]int{first, second} {
			if !e.cards[i].IsMatched {
				e.cards[i].IsFlipped = false
			}
		}
		e.score = max(e.score-mismatchPenalty, 0)
	})
}

// IsGameover reports whether every pair of a non-empty deck is matched.
func (e *Engine) IsGameover() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameoverLocked()
}

func (e *Engine) gameoverLocked() bool {
	return len(e.cards) > 0 && e.matches == len(e.cards)/2
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Selected returns the indices in the current selection buffer.
func (e *Engine) Selected() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.selected...)
}

// PendingSteps is the number of timed steps not yet fired or stopped.
func (e *Engine) PendingSteps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Subscribe registers fn to receive a Snapshot after every state change.
// Listeners run in subscription order. Changes racing on different goroutines
// may arrive out of order; Seq tells them apart. The returned func removes fn.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.lmu.Lock()
	id := e.nextLsn
	e.nextLsn++
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	e.lmu.Unlock()
	return func() {
		e.lmu.Lock()
		e.listeners = slices.DeleteFunc(e.listeners, func(l listener) bool { return l.id == id })
		e.lmu.Unlock()
	}
}

// Close stops pending timers and turns further commands into no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.generation++
	e.stopTimersLocked()
	e.mu.Unlock()

	e.lmu.Lock()
	e.listeners = nil
	e.lmu.Unlock()
}

// ------------------------------ internals ----------------------------------

// commitLocked advances the change sequence and snapshots the new state.
func (e *Engine) commitLocked() Snapshot {
	e.seq++
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Cards:    append([]Card(nil), e.cards...),
		Score:    e.score,
		Attempts: e.attempts,
		Matches:  e.matches,
		Gameover: e.gameoverLocked(),
		Pending:  e.swapPending,
		Round:    e.round,
		Seq:      e.seq,
	}
}

// scheduleLocked runs step under the lock after d, unless Reset or Close
// moved the generation on in the meantime.
func (e *Engine) scheduleLocked(d time.Duration, step func()) {
	id := e.nextTimer
	e.nextTimer++
	gen := e.generation
	e.timers[id] = e.sched.AfterFunc(d, func() { e.fire(id, gen, step) })
}

func (e *Engine) fire(id, gen uint64, step func()) {
	e.mu.Lock()
	delete(e.timers, id)
	if gen != e.generation {
		cur := e.generation
		e.mu.Unlock()
		e.log.Debug().Uint64("scheduled", gen).Uint64("current", cur).Msg("dropping stale step")
		return
	}
	step()
	snap := e.commitLocked()
	e.mu.Unlock()

	e.publish(snap)
}

func (e *Engine) stopTimersLocked() {
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

type listener struct {
	id int
	fn func(Snapshot)
}

// publish runs outside e.mu, so concurrent changes may reach a listener out
// of Seq order.
func (e *Engine) publish(s Snapshot) {
	e.lmu.Lock()
	ls := slices.Clone(e.listeners)
	e.lmu.Unlock()
	for _, l := range ls {
		l.fn(s)
	}
}
