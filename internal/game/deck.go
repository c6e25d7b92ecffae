// internal/game/deck.go
//
// Deck construction: every symbol of the alphabet appears exactly twice.

package game

import (
	"errors"
	"math/rand/v2"
)

// DefaultSymbols is the built-in alphabet (six pairs, twelve cards).
var DefaultSymbols = []string{"🍎", "🍌", "🍒", "🍇", "🥝", "🍉"}

// ErrInvalidAlphabet is returned for empty alphabets or ones with blank or
// duplicate symbols.
var ErrInvalidAlphabet = errors.New("invalid symbol alphabet")

// ValidateAlphabet checks that symbols can produce a fully paired deck.
func ValidateAlphabet(symbols []string) error {
	if len(symbols) == 0 {
		return ErrInvalidAlphabet
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s == "" {
			return ErrInvalidAlphabet
		}
		if _, dup := seen[s]; dup {
			return ErrInvalidAlphabet
		}
		seen[s] = struct{}{}
	}
	return nil
}

// NewDeck returns len(symbols)*2 face-down cards in shuffled order.
func NewDeck(symbols []string, rng *rand.Rand) []Card {
	cards := make([]Card, 0, len(symbols)*2)
	for _, s := range symbols {
		cards = append(cards, newCard(s))
	}
	for _, s := range symbols {
		cards = append(cards, newCard(s))
	}
	shuffle(cards, rng)
	return cards
}

// shuffle permutes cards uniformly at random in place.
func shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
