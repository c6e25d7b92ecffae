package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

const heartbeatEvery = 15 * time.Second

// handleEvents streams the session state as Server-Sent Events.
// The current state is sent first, then one "state" event per engine change.
// Only the newest pending snapshot is kept for a slow reader, and seq never
// goes backwards on the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}
	sess := sessionFrom(r)

	box := newSnapshotBox()
	unsubscribe := sess.Engine.Subscribe(box.offer)
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	first := sess.Engine.Snapshot()
	box.skipThrough(first.Seq)
	if err := writeEvent(w, first); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-box.ready:
			snap, ok := box.take()
			if !ok {
				continue
			}
			if err := writeEvent(w, snap); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, snap game.Snapshot) error {
	b, err := json.Marshal(viewOf(snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", snap.Seq, b)
	return err
}

// snapshotBox holds the newest undelivered snapshot for one reader.
// Listeners can be called out of commit order by concurrent changes, so a
// snapshot is kept only if its Seq beats both the pending one and the last
// one taken.
type snapshotBox struct {
	mu      sync.Mutex
	pending *game.Snapshot
	taken   int64
	ready   chan struct{}
}

func newSnapshotBox() *snapshotBox {
	return &snapshotBox{taken: -1, ready: make(chan struct{}, 1)}
}

func (b *snapshotBox) offer(s game.Snapshot) {
	b.mu.Lock()
	if s.Seq <= b.taken || (b.pending != nil && s.Seq <= b.pending.Seq) {
		b.mu.Unlock()
		return
	}
	b.pending = &s
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// take returns the pending snapshot, if any, and marks it delivered.
func (b *snapshotBox) take() (game.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return game.Snapshot{}, false
	}
	s := *b.pending
	b.pending = nil
	b.taken = s.Seq
	return s, true
}

// skipThrough marks everything up to seq as already delivered.
func (b *snapshotBox) skipThrough(seq int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq > b.taken {
		b.taken = seq
	}
	if b.pending != nil && b.pending.Seq <= seq {
		b.pending = nil
	}
}
