package results

import (
	"context"
	"database/sql"
	"time"
)

// Result is the outcome of one finished round.
type Result struct {
	GameID    string `json:"gameId"`
	Round     int    `json:"round"`
	Score     int    `json:"score"`
	Attempts  int    `json:"attempts"`
	Pairs     int    `json:"pairs"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Store records finished rounds and ranks them.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert records r. A second result for the same game and round is ignored.
func (s *Store) Insert(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO results(game_id, round, score, attempts, pairs, elapsed_ms)
VALUES(?,?,?,?,?,?)`, r.GameID, r.Round, r.Score, r.Attempts, r.Pairs, r.ElapsedMs,
	)
	return err
}

// Row is one leaderboard entry.
type Row struct {
	Result
	CreatedAt time.Time `json:"createdAt"`
}

// Top returns the best results: highest score, then fewest attempts, then fastest.
func (s *Store) Top(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, round, score, attempts, pairs, elapsed_ms, created_at
FROM results
ORDER BY score DESC, attempts ASC, elapsed_ms ASC, created_at ASC
LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	for rows.Next() {
		var r Row
		var created string
		if err := rows.Scan(&r.GameID, &r.Round, &r.Score, &r.Attempts, &r.Pairs, &r.ElapsedMs, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
