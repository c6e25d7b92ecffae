// internal/symbols/symbols.go
//
// Provides the symbol alphabet the engine builds its decks from.
//
// Loading behavior (Load):
//   1. If a path is given, read one symbol per line from that file.
//   2. Otherwise use the embedded default list (assets/symbols.txt).
//
// Constraints:
//   • Blank lines and lines starting with '#' are skipped.
//   • The result must be non-empty with no duplicate symbols;
//     each symbol becomes exactly one pair on the board.

package symbols

import (
	"fmt"
	"os"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// Load returns the alphabet from path, or the embedded default when path is empty.
func Load(path string) ([]string, error) {
	var (
		list []string
		err  error
	)
	if path == "" {
		list, err = assets.SymbolsList()
	} else {
		list, err = readSymbolFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("symbols: load %q: %w", path, err)
	}
	if err := game.ValidateAlphabet(list); err != nil {
		return nil, fmt.Errorf("symbols: %q: %w", path, err)
	}
	return list, nil
}

// readSymbolFile loads one symbol per line from a file.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return assets.ReadLines(f)
}
