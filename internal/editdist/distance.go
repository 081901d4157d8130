// Package editdist computes Levenshtein distances between passwords and the
// alignment (edit trace) behind them.
package editdist

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"ruleforge/internal/wordlist"
)

// TooLarge is reported by the bounded functions when the distance exceeds the bound.
const TooLarge = -1

// DefaultMaxDistance is the bound used when building distance matrices.
const DefaultMaxDistance = 100

// Distance returns the Levenshtein distance between a and b, or TooLarge when
// it is greater than bound. A negative bound disables the limit.
func Distance(a, b []rune, bound int) int {
	// common prefix and suffix never contribute
	for len(a) > 0 && len(b) > 0 && a[0] == b[0] {
		a, b = a[1:], b[1:]
	}
	for len(a) > 0 && len(b) > 0 && a[len(a)-1] == b[len(b)-1] {
		a, b = a[:len(a)-1], b[:len(b)-1]
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	if bound < 0 {
		bound = len(b)
	}
	if len(b)-len(a) > bound {
		return TooLarge
	}
	if len(a) == 0 {
		return len(b)
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		rowMin := j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
			if curr[i] < rowMin {
				rowMin = curr[i]
			}
		}
		// the row minimum never decreases further down the table
		if rowMin > bound {
			return TooLarge
		}
		prev, curr = curr, prev
	}

	if prev[len(a)] > bound {
		return TooLarge
	}
	return prev[len(a)]
}

// Strings is Distance for raw password strings. Valid UTF-8 input goes through
// the agnivade implementation; anything else is compared in escaped rune form
// so distinct invalid bytes remain distinct characters.
func Strings(a, b string, bound int) int {
	if a == b {
		return 0
	}
	if !utf8.ValidString(a) || !utf8.ValidString(b) {
		return Distance(wordlist.Runes(a), wordlist.Runes(b), bound)
	}

	if bound >= 0 {
		diff := utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
		if diff > bound || -diff > bound {
			return TooLarge
		}
	}
	d := levenshtein.ComputeDistance(a, b)
	if bound >= 0 && d > bound {
		return TooLarge
	}
	return d
}
