// Package bitstate holds the 8-bit state words shared by matches, players and
// placed objects, together with the per-kind bit tables.
package bitstate

import (
	"fmt"
	"strconv"
)

// Word is an 8-bit flag set. Bits mean different things per entity kind.
type Word uint8

// Set turns on every bit of mask.
func Set(w, mask Word) Word { return w | mask }

// Clear turns off every bit of mask.
func Clear(w, mask Word) Word { return w &^ mask }

// Toggle flips every bit of mask.
func Toggle(w, mask Word) Word { return w ^ mask }

// Matches reports whether the bits selected by mask equal expected.
func Matches(w, mask, expected Word) bool { return w&mask == expected }

// Has reports whether all bits of mask are set.
func (w Word) Has(mask Word) bool { return w&mask == mask }

// String renders the word as eight binary digits, most significant first.
func (w Word) String() string { return fmt.Sprintf("%08b", uint8(w)) }

// Parse reads a word back from its binary form. Shorter strings are treated
// as having leading zeros.
func Parse(s string) (Word, error) {
	if len(s) == 0 || len(s) > 8 {
		return 0, fmt.Errorf("bitstate: invalid word %q", s)
	}
	v, err := strconv.ParseUint(s, 2, 8)
	if err != nil {
		return 0, fmt.Errorf("bitstate: invalid word %q: %w", s, err)
	}
	return Word(v), nil
}
