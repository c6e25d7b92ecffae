package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

const columns = 4

// Render writes a text view of s. Cards are numbered from 1; face-down cards
// show "?", matched cards use parentheses.
func Render(w io.Writer, s game.Snapshot) error {
	var b strings.Builder
	if len(s.Cards) == 0 {
		b.WriteString("Shuffling...\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for i, c := range s.Cards {
		face := "?"
		if c.FaceUp() {
			face = c.Content
		}
		if c.IsMatched {
			fmt.Fprintf(&b, "%2d (%s)", i+1, face)
		} else {
			fmt.Fprintf(&b, "%2d [%s]", i+1, face)
		}
		if (i+1)%columns == 0 || i == len(s.Cards)-1 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}
	fmt.Fprintf(&b, "Score: %d  Moves: %d  Matches: %d/%d\n", s.Score, s.Attempts, s.Matches, s.Pairs())
	if s.Pending {
		b.WriteString("Shuffling...\n")
	}
	if s.Gameover {
		fmt.Fprintf(&b, "Game Over! Final score %d in %d moves. Press r to play again.\n", s.Score, s.Attempts)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
