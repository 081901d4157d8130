// Package wordlist reads password lists and converts between raw password bytes
// and the rune form the rule engine works on.
//
// Passwords travel through the program as Go strings holding the exact input
// bytes. Character-level work needs code points, so Runes decodes valid UTF-8
// normally and maps every byte that is not part of a valid sequence to an
// escape rune in U+DC80..U+DCFF. String maps those escape runes back to the
// original bytes, which makes String(Runes(s)) == s for any input.
package wordlist

import (
	"strings"
	"unicode/utf8"
)

const (
	escapeLow  = 0xDC80
	escapeHigh = 0xDCFF
)

// Runes decodes s into runes, escaping invalid bytes.
func Runes(s string) []rune {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			out = append(out, rune(0xDC00|int(s[i])))
			i++
			continue
		}
		out = append(out, r)
		i += size
	}
	return out
}

// String encodes runes produced by Runes (or derived from them) back to bytes.
func String(r []rune) string {
	var b strings.Builder
	b.Grow(len(r))
	for _, c := range r {
		if IsEscaped(c) {
			b.WriteByte(byte(c & 0xFF))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// IsEscaped reports whether r stands for a raw, undecodable input byte.
func IsEscaped(r rune) bool {
	return r >= escapeLow && r <= escapeHigh
}

// Len returns the number of characters of s in the escaped rune form.
func Len(s string) int {
	if utf8.ValidString(s) {
		return utf8.RuneCountInString(s)
	}
	return len(Runes(s))
}
