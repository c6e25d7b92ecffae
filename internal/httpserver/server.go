// internal/httpserver/server.go
//
// HTTP server wiring for the Memory backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/results".
//   - Game endpoints: POST /game/new, then token-gated /game/{id}/* and DELETE /game/{id}.
//   - Recording finished rounds in the results ledger (best effort).
//
// Notes:
//   - Every client gets its own engine; sessions live in the in-memory store.
//   - POST /game/new returns a session token (JWT with a "sid" claim) that the
//     client presents as "Authorization: Bearer" or ?token= (for EventSource).
//   - The events stream is the only route without a request timeout.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/results"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

// EngineFactory builds the engine for a new session.
type EngineFactory func() (*game.Engine, error)

// Deps are the collaborators a Server needs.
type Deps struct {
	Sessions     store.Store
	Results      *results.Store // nil disables the ledger
	NewEngine    EngineFactory
	JWTSecret    string
	TokenTTL     time.Duration
	ClientOrigin string
	Now          func() time.Time
}

// Server bundles router, session store and results ledger.
type Server struct {
	r         *chi.Mux
	sessions  store.Store
	results   *results.Store
	newEngine EngineFactory
	tokens    tokens
	now       func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 24 * time.Hour
	}
	if d.ClientOrigin == "" {
		d.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{
		r:         chi.NewRouter(),
		sessions:  d.Sessions,
		results:   d.Results,
		newEngine: d.NewEngine,
		tokens:    tokens{secret: []byte(d.JWTSecret), ttl: d.TokenTTL, now: d.Now},
		now:       d.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)               // add X-Request-ID
	s.r.Use(chimw.RealIP)                  // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))   // request-scoped zerolog logger
	s.r.Use(hlog.AccessHandler(accessLog)) // one zerolog line per request
	s.r.Use(chimw.Recoverer)               // recover from panics
	s.r.Use(jsonContentType)               // default JSON responses
	s.r.Use(cors(d.ClientOrigin))          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","/results","POST /game/new","/game/{id}"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	timeout := chimw.Timeout(10 * time.Second) // bound handler time

	s.r.With(timeout).Get("/results", s.handleResults)
	s.r.With(timeout).Post("/game/new", s.handleNewGame)

	// Session routes (token required)
	s.r.Route("/game/{id}", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/events", s.handleEvents) // long-lived stream, no timeout
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", s.handleState)
			r.Post("/select", s.handleSelect)
			r.Post("/reset", s.handleReset)
			r.Delete("/", s.handleDelete)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one structured log line per request.
func accessLog(r *http.Request, status, size int, elapsed time.Duration) {
	hlog.FromRequest(r).Info().
		Str("req_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", size).
		Dur("elapsed", elapsed).
		Msg("request")
}

// ctxSessionKey is the context key type for storing the resolved session.
type ctxSessionKey struct{}

// requireSession checks the session token against {id} and loads the session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		raw := bearerOrQuery(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sid, err := s.tokens.verify(raw)
		if err != nil || sid != id {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		sess, err := s.sessions.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *store.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*store.Session)
	return sess
}

// ------------------------------ RESULTS ------------------------------------

// handleResults returns the leaderboard (?limit=N, default 20, max 100).
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"top": []results.Row{}})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, 100)
	}
	rows, err := s.results.Top(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("load results")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"top": rows})
}

// recordResult stores a finished round once per round.
func (s *Server) recordResult(sess *store.Session, snap game.Snapshot) {
	round := snap.Round
	elapsed, first := sess.FinishRound(round, s.now())
	if !first || s.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.results.Insert(ctx, results.Result{
		GameID:    sess.ID,
		Round:     round,
		Score:     snap.Score,
		Attempts:  snap.Attempts,
		Pairs:     snap.Pairs(),
		ElapsedMs: elapsed.Milliseconds(),
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("record result")
		return
	}
	log.Info().Str("gameId", sess.ID).Int("round", round).Int("score", snap.Score).Int("attempts", snap.Attempts).Msg("round finished")
}

// ------------------------------- small util --------------------------------

// writeError writes a JSON error body {"error":code}.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
