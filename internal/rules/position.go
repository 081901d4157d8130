package rules

import (
	"fmt"

	rferrors "ruleforge/internal/errors"
)

// MaxPosition is the largest position a single rule character can encode.
const MaxPosition = 35

// ErrPositionOverflow is returned for positions outside 0..MaxPosition.
var ErrPositionOverflow = rferrors.New(rferrors.PositionOverflow, "rule position outside 0-35", nil)

// EncodePosition renders n as a hashcat position: 0-9, then A-Z for 10-35.
func EncodePosition(n int) (string, error) {
	switch {
	case n >= 0 && n <= 9:
		return string(rune('0' + n)), nil
	case n >= 10 && n <= MaxPosition:
		return string(rune('A' + n - 10)), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrPositionOverflow, n)
	}
}

// DecodePosition is the inverse of EncodePosition.
func DecodePosition(c rune) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
