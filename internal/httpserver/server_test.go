package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/results"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/testutil"
)

const testSecret = "test_secret_0123456789"

type harness struct {
	srv      *Server
	sessions store.Store
	sched    *testutil.ManualScheduler
	results  *results.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := results.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, results.Migrate(db, assets.Migrations()))

	h := &harness{
		sessions: store.NewMemoryStore(),
		sched:    testutil.NewManualScheduler(),
		results:  results.NewStore(db),
	}
	h.srv = New(Deps{
		Sessions:  h.sessions,
		Results:   h.results,
		JWTSecret: testSecret,
		NewEngine: func() (*game.Engine, error) {
			return game.New(game.Options{Scheduler: h.sched})
		},
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

// newGame creates a game and installs its first deck.
func (h *harness) newGame(t *testing.T) (newGameRes, *store.Session) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/game/new", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res newGameRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	h.sched.Advance(game.DefaultShuffleDelay)

	sess, err := h.sessions.Get(context.Background(), res.GameID)
	require.NoError(t, err)
	return res, sess
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateView {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v stateView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestNotFoundIsJSON(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec))
}

func TestNewGame_PendingThenHiddenDeck(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/game/new", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res newGameRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.GameID)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.State.Pending)

	h.sched.Advance(game.DefaultShuffleDelay)
	v := decodeState(t, h.do(t, http.MethodGet, "/game/"+res.GameID, res.Token, nil))
	assert.False(t, v.Pending)
	require.Len(t, v.Cards, 12)
	for _, c := range v.Cards {
		assert.False(t, c.FaceUp)
		assert.Empty(t, c.Content, "face-down content must not leak")
		assert.NotEmpty(t, c.ID)
	}
}

func TestSessionAuth(t *testing.T) {
	h := newHarness(t)
	a, _ := h.newGame(t)
	b, _ := h.newGame(t)

	rec := h.do(t, http.MethodGet, "/game/"+a.GameID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec))

	rec = h.do(t, http.MethodGet, "/game/"+a.GameID, b.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decodeError(t, rec))

	rec = h.do(t, http.MethodGet, "/game/"+a.GameID, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// query token works too (EventSource clients)
	rec = h.do(t, http.MethodGet, "/game/"+a.GameID+"?token="+a.Token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// valid token for a session that no longer exists
	require.NoError(t, h.sessions.Delete(context.Background(), a.GameID))
	rec = h.do(t, http.MethodGet, "/game/"+a.GameID, a.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionAuth_ExpiredToken(t *testing.T) {
	h := newHarness(t)
	g, _ := h.newGame(t)

	old := tokens{secret: []byte(testSecret), ttl: time.Hour, now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}
	tok, err := old.sign(g.GameID)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/game/"+g.GameID, tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelect_MismatchThenMatch(t *testing.T) {
	h := newHarness(t)
	g, sess := h.newGame(t)
	cards := sess.Engine.Snapshot().Cards

	other := -1
	partner := -1
	for i := 1; i < len(cards); i++ {
		if cards[i].Content == cards[0].Content {
			partner = i
		} else if other < 0 {
			other = i
		}
	}
	require.Positive(t, other)
	require.Positive(t, partner)

	path := "/game/" + g.GameID + "/select"
	v := decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": 0}))
	assert.True(t, v.Cards[0].FaceUp)
	assert.Equal(t, cards[0].Content, v.Cards[0].Content)

	v = decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": other}))
	assert.Equal(t, 1, v.Attempts)
	assert.True(t, v.Cards[other].FaceUp)

	h.sched.Advance(game.DefaultFlipBackDelay)
	v = decodeState(t, h.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, nil))
	assert.False(t, v.Cards[0].FaceUp)
	assert.Empty(t, v.Cards[other].Content)
	assert.Zero(t, v.Score)

	decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": 0}))
	v = decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": partner}))
	assert.True(t, v.Cards[0].Matched)
	assert.True(t, v.Cards[partner].Matched)
	assert.Equal(t, 2, v.Score)
	assert.Equal(t, 1, v.Matches)
	assert.Equal(t, 2, v.Attempts)
}

func TestSelect_BadRequests(t *testing.T) {
	h := newHarness(t)
	g, _ := h.newGame(t)
	path := "/game/" + g.GameID + "/select"

	rec := h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": 12})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_index", decodeError(t, rec))

	rec = h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": -1})
	assert.Equal(t, "invalid_index", decodeError(t, rec))

	rec = h.do(t, http.MethodPost, path, g.Token, map[string]string{"card": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_json", decodeError(t, rec))
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	g, _ := h.newGame(t)
	decodeState(t, h.do(t, http.MethodPost, "/game/"+g.GameID+"/select", g.Token, map[string]int{"index": 0}))

	v := decodeState(t, h.do(t, http.MethodPost, "/game/"+g.GameID+"/reset", g.Token, nil))
	assert.True(t, v.Pending)
	for _, c := range v.Cards {
		assert.False(t, c.FaceUp)
	}

	h.sched.Advance(game.DefaultShuffleDelay)
	v = decodeState(t, h.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, nil))
	assert.False(t, v.Pending)
	assert.Zero(t, v.Attempts)
}

// clearBoard matches every pair of the session's current deck over HTTP and
// returns the final state.
func (h *harness) clearBoard(t *testing.T, g newGameRes, sess *store.Session) stateView {
	t.Helper()
	cards := sess.Engine.Snapshot().Cards
	path := "/game/" + g.GameID + "/select"

	done := map[int]bool{}
	var v stateView
	for i := range cards {
		if done[i] {
			continue
		}
		for j := i + 1; j < len(cards); j++ {
			if cards[j].Content == cards[i].Content {
				decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": i}))
				v = decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": j}))
				done[i], done[j] = true, true
				break
			}
		}
	}
	return v
}

func (h *harness) topResults(t *testing.T) []results.Row {
	t.Helper()
	rec := h.do(t, http.MethodGet, "/results", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Top []results.Row `json:"top"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Top
}

func TestFinishedRoundIsRecorded(t *testing.T) {
	h := newHarness(t)
	g, sess := h.newGame(t)

	v := h.clearBoard(t, g, sess)
	require.True(t, v.Gameover)

	// further reads don't record twice
	decodeState(t, h.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, nil))

	top := h.topResults(t)
	require.Len(t, top, 1)
	assert.Equal(t, g.GameID, top[0].GameID)
	assert.Equal(t, 12, top[0].Score)
	assert.Equal(t, 6, top[0].Attempts)
	assert.Equal(t, 6, top[0].Pairs)
	assert.Equal(t, 1, top[0].Round)
}

func TestEachRoundIsRecordedUnderItsOwnNumber(t *testing.T) {
	h := newHarness(t)
	g, sess := h.newGame(t)
	require.True(t, h.clearBoard(t, g, sess).Gameover)

	v := decodeState(t, h.do(t, http.MethodPost, "/game/"+g.GameID+"/reset", g.Token, nil))
	assert.False(t, v.Gameover)
	h.sched.Advance(game.DefaultShuffleDelay)
	require.True(t, h.clearBoard(t, g, sess).Gameover)

	top := h.topResults(t)
	require.Len(t, top, 2)
	rounds := []int{top[0].Round, top[1].Round}
	assert.ElementsMatch(t, []int{1, 2}, rounds)
}

func TestDeleteGame(t *testing.T) {
	h := newHarness(t)
	g, sess := h.newGame(t)
	cards := sess.Engine.Snapshot().Cards
	other := 1
	for cards[other].Content == cards[0].Content {
		other++
	}
	path := "/game/" + g.GameID + "/select"
	decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": 0}))
	decodeState(t, h.do(t, http.MethodPost, path, g.Token, map[string]int{"index": other}))
	require.Equal(t, 1, sess.Engine.PendingSteps())

	rec := h.do(t, http.MethodDelete, "/game/"+g.GameID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodDelete, "/game/"+g.GameID, g.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, sess.Engine.PendingSteps(), "engine closed")

	rec = h.do(t, http.MethodGet, "/game/"+g.GameID, g.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResults_BadLimit(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/results?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_limit", decodeError(t, rec))
}

func TestEvents_StreamsStateChanges(t *testing.T) {
	h := newHarness(t)
	g, _ := h.newGame(t)

	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/game/"+g.GameID+"/events?token="+g.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan stateView, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var v stateView
				if json.Unmarshal([]byte(data), &v) == nil {
					events <- v
				}
			}
		}
		close(events)
	}()

	next := func() stateView {
		select {
		case v, ok := <-events:
			require.True(t, ok, "stream closed")
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return stateView{}
		}
	}

	first := next()
	assert.Len(t, first.Cards, 12)

	decodeState(t, h.do(t, http.MethodPost, "/game/"+g.GameID+"/select", g.Token, map[string]int{"index": 0}))
	v := next()
	assert.True(t, v.Cards[0].FaceUp)
	assert.Greater(t, v.Seq, first.Seq)
}
