// internal/game/types.go
//
// Core type definitions for the Memory game engine.
// Defines:
//   - Card: one deck entry (identity + flip/match flags).
//   - Snapshot: read-only copy of the engine state handed to renderers.

package game

import "github.com/google/uuid"

// Card is a single entry in the deck.
// ID is unique per card instance; two cards sharing Content form a pair.
// IsFlipped and IsMatched are only ever changed by the Engine.
type Card struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	IsFlipped bool      `json:"isFlipped"`
	IsMatched bool      `json:"isMatched"`
}

// newCard builds a face-down, unmatched card with a fresh identity.
func newCard(content string) Card {
	return Card{ID: uuid.New(), Content: content}
}

// FaceUp reports whether the card's content should be shown.
func (c Card) FaceUp() bool { return c.IsFlipped || c.IsMatched }

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	Cards    []Card `json:"cards"`
	Score    int    `json:"score"`
	Attempts int    `json:"attempts"`
	Matches  int    `json:"matches"`
	Gameover bool   `json:"gameover"`
	Pending  bool   `json:"pending"` // new deck not yet installed after Reset
	Round    int    `json:"round"`   // number of resets, 1 for the first deck
	Seq      int64  `json:"seq"`     // increases with every state change
}

// Pairs is the number of pairs in the snapshot's deck.
func (s Snapshot) Pairs() int { return len(s.Cards) / 2 }
