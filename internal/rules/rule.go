package rules

import (
	"strings"
	"unicode"

	"ruleforge/internal/wordlist"
)

// Rule is a rule with its parameters bound. Apply never mutates its input;
// positions outside the word leave it unchanged, as hashcat does.
type Rule interface {
	Kind() Kind
	Apply(w []rune) []rune
	// Token materialises the rule, e.g. "i3x". It fails only when a position
	// cannot be encoded.
	Token() (string, error)
}

// Nullary is a rule without parameters (":", "l", "[", "r", ...).
type Nullary struct {
	K Kind
}

// Positional is a rule taking a position or count N ("TN", "zN", "DN", ...).
type Positional struct {
	K Kind
	N int
}

// Char is a rule taking a single character ("$X", "^X").
type Char struct {
	K Kind
	X rune
}

// PositionalChar is a rule taking a position and a character ("iNX", "oNX").
type PositionalChar struct {
	K Kind
	N int
	X rune
}

// Substitution replaces every X with Y ("sXY").
type Substitution struct {
	X, Y rune
}

func (r Nullary) Kind() Kind        { return r.K }
func (r Positional) Kind() Kind     { return r.K }
func (r Char) Kind() Kind           { return r.K }
func (r PositionalChar) Kind() Kind { return r.K }
func (Substitution) Kind() Kind     { return Substitute }

func (r Nullary) Token() (string, error) { return r.K.Name(), nil }

func (r Positional) Token() (string, error) {
	pos, err := EncodePosition(r.N)
	if err != nil {
		return "", err
	}
	return prefix(r.K) + pos, nil
}

func (r Char) Token() (string, error) {
	return prefix(r.K) + char(r.X), nil
}

func (r PositionalChar) Token() (string, error) {
	pos, err := EncodePosition(r.N)
	if err != nil {
		return "", err
	}
	return prefix(r.K) + pos + char(r.X), nil
}

func (r Substitution) Token() (string, error) {
	return "s" + char(r.X) + char(r.Y), nil
}

// prefix is the rule letter in front of the parameters.
func prefix(k Kind) string {
	switch k {
	case ToggleAt, ToggleAtAlt:
		return "T"
	default:
		return k.Name()[:1]
	}
}

func char(r rune) string {
	return wordlist.String([]rune{r})
}

func (r Nullary) Apply(w []rune) []rune {
	switch r.K {
	case Lower:
		return mapRunes(w, unicode.ToLower)
	case Upper:
		return mapRunes(w, unicode.ToUpper)
	case Capitalize:
		out := mapRunes(w, unicode.ToLower)
		if len(out) > 0 {
			out[0] = unicode.ToUpper(out[0])
		}
		return out
	case ToggleAll:
		return mapRunes(w, SwapCase)
	case DeleteFirst:
		if len(w) == 0 {
			return clone(w)
		}
		return clone(w[1:])
	case DeleteLast:
		if len(w) == 0 {
			return clone(w)
		}
		return clone(w[:len(w)-1])
	case RotateLeft:
		if len(w) == 0 {
			return clone(w)
		}
		return append(clone(w[1:]), w[0])
	case RotateRight:
		if len(w) == 0 {
			return clone(w)
		}
		return append([]rune{w[len(w)-1]}, w[:len(w)-1]...)
	case Reverse:
		out := make([]rune, len(w))
		for i, c := range w {
			out[len(w)-1-i] = c
		}
		return out
	default:
		return clone(w)
	}
}

func (r Positional) Apply(w []rune) []rune {
	switch r.K {
	case ToggleAt, ToggleAtAlt:
		out := clone(w)
		if r.N >= 0 && r.N < len(out) {
			out[r.N] = SwapCase(out[r.N])
		}
		return out
	case DuplicateFirst:
		if len(w) == 0 || r.N <= 0 {
			return clone(w)
		}
		return append(repeat(w[0], r.N), w...)
	case DuplicateLast:
		if len(w) == 0 || r.N <= 0 {
			return clone(w)
		}
		return append(clone(w), repeat(w[len(w)-1], r.N)...)
	case DeleteAt:
		if r.N < 0 || r.N >= len(w) {
			return clone(w)
		}
		return append(clone(w[:r.N]), w[r.N+1:]...)
	default:
		return clone(w)
	}
}

func (r Char) Apply(w []rune) []rune {
	switch r.K {
	case Append:
		return append(clone(w), r.X)
	case Prepend:
		return append([]rune{r.X}, w...)
	default:
		return clone(w)
	}
}

func (r PositionalChar) Apply(w []rune) []rune {
	switch r.K {
	case InsertAt:
		if r.N < 0 || r.N > len(w) {
			return clone(w)
		}
		out := make([]rune, 0, len(w)+1)
		out = append(out, w[:r.N]...)
		out = append(out, r.X)
		return append(out, w[r.N:]...)
	case OverwriteAt:
		out := clone(w)
		if r.N >= 0 && r.N < len(out) {
			out[r.N] = r.X
		}
		return out
	default:
		return clone(w)
	}
}

func (r Substitution) Apply(w []rune) []rune {
	out := clone(w)
	for i, c := range out {
		if c == r.X {
			out[i] = r.Y
		}
	}
	return out
}

// ApplyAll applies rules left to right.
func ApplyAll(rs []Rule, w []rune) []rune {
	out := clone(w)
	for _, r := range rs {
		out = r.Apply(out)
	}
	return out
}

// SwapCase toggles the case of a letter and returns anything else unchanged.
func SwapCase(c rune) rune {
	switch {
	case unicode.IsUpper(c):
		return unicode.ToLower(c)
	case unicode.IsLower(c):
		return unicode.ToUpper(c)
	default:
		return c
	}
}

// Join renders a rule sequence the way rule files store it.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

func mapRunes(w []rune, f func(rune) rune) []rune {
	out := make([]rune, len(w))
	for i, c := range w {
		out[i] = f(c)
	}
	return out
}

func repeat(c rune, n int) []rune {
	out := make([]rune, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func clone(w []rune) []rune {
	return append([]rune(nil), w...)
}
