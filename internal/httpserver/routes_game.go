// internal/httpserver/routes_game.go
//
// HTTP routes for playing one Memory game:
//   - POST /game/new          → create a session, return its id, token and state
//   - GET  /game/{id}         → current state
//   - POST /game/{id}/select  → flip the card at {"index": n}
//   - POST /game/{id}/reset   → start a new round
//   - DELETE /game/{id}       → end the session and stop its timers
//
// Face-down cards never carry their content on the wire (see viewOf).

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

// newGameRes is returned by POST /game/new.
type newGameRes struct {
	GameID string    `json:"gameId"`
	Token  string    `json:"token"`
	State  stateView `json:"state"`
}

// handleNewGame creates an engine, stores it as a session and issues a token.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	e, err := s.newEngine()
	if err != nil {
		log.Error().Err(err).Msg("create engine")
		writeError(w, http.StatusInternalServerError, "engine_failed")
		return
	}
	sess := store.NewSession(e, s.now())
	e.Subscribe(func(snap game.Snapshot) {
		if snap.Gameover {
			s.recordResult(sess, snap)
		}
	})

	if err := s.sessions.Save(r.Context(), sess); err != nil {
		e.Close()
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	tok, err := s.tokens.sign(sess.ID)
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}

	log.Info().Str("gameId", sess.ID).Msg("game created")
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: sess.ID, Token: tok, State: viewOf(e.Snapshot())})
}

// handleState returns the session's current state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	_ = json.NewEncoder(w).Encode(viewOf(sess.Engine.Snapshot()))
}

// selectReq is the payload for POST /game/{id}/select.
type selectReq struct {
	Index *int `json:"index"`
}

// handleSelect forwards a tap on card index to the engine.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r)
	if err := sess.Engine.Select(*req.Index); err != nil {
		if errors.Is(err, game.ErrIndexOutOfRange) {
			writeError(w, http.StatusBadRequest, "invalid_index")
			return
		}
		log.Error().Err(err).Str("gameId", sess.ID).Msg("select")
		writeError(w, http.StatusInternalServerError, "select_failed")
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(sess.Engine.Snapshot()))
}

// handleReset starts a new round for the session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Engine.Reset()
	snap := sess.Engine.Snapshot()
	sess.StartRound(snap.Round, s.now())
	_ = json.NewEncoder(w).Encode(viewOf(snap))
}

// handleDelete ends the session; its engine is closed by the store.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("gameId", sess.ID).Msg("delete session")
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	log.Info().Str("gameId", sess.ID).Msg("game ended")
	w.WriteHeader(http.StatusNoContent)
}

// bearerOrQuery extracts a token from the Authorization header or ?token=.
func bearerOrQuery(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}
