package httpserver

import "github.com/robalobadob/memory/apps/go-server/internal/game"

// cardView is the wire form of a card. Content is withheld while the card is
// face down so clients cannot peek.
type cardView struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
	FaceUp  bool   `json:"faceUp"`
	Matched bool   `json:"matched"`
}

// stateView is the wire form of a game.Snapshot.
type stateView struct {
	Cards    []cardView `json:"cards"`
	Score    int        `json:"score"`
	Attempts int        `json:"attempts"`
	Matches  int        `json:"matches"`
	Gameover bool       `json:"gameover"`
	Pending  bool       `json:"pending"`
	Round    int        `json:"round"`
	Seq      int64      `json:"seq"`
}

func viewOf(s game.Snapshot) stateView {
	cards := make([]cardView, len(s.Cards))
	for i, c := range s.Cards {
		cv := cardView{ID: c.ID.String(), FaceUp: c.FaceUp(), Matched: c.IsMatched}
		if cv.FaceUp {
			cv.Content = c.Content
		}
		cards[i] = cv
	}
	return stateView{
		Cards:    cards,
		Score:    s.Score,
		Attempts: s.Attempts,
		Matches:  s.Matches,
		Gameover: s.Gameover,
		Pending:  s.Pending,
		Round:    s.Round,
		Seq:      s.Seq,
	}
}
