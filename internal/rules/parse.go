package rules

import (
	"fmt"
	"strings"

	"ruleforge/internal/wordlist"
)

// Parse turns a materialised token such as "$1", "i3x" or "sa@" back into a
// Rule. Characters are read in escaped rune form so raw bytes survive.
func Parse(token string) (Rule, error) {
	r := wordlist.Runes(token)
	if len(r) == 0 {
		return nil, fmt.Errorf("empty rule token")
	}

	args := r[1:]
	switch r[0] {
	case ':':
		return nullary(Noop, args, token)
	case 'l':
		return nullary(Lower, args, token)
	case 'u':
		return nullary(Upper, args, token)
	case 'c':
		return nullary(Capitalize, args, token)
	case '[':
		return nullary(DeleteFirst, args, token)
	case ']':
		return nullary(DeleteLast, args, token)
	case '}':
		return nullary(RotateRight, args, token)
	case '{':
		return nullary(RotateLeft, args, token)
	case 'r':
		return nullary(Reverse, args, token)
	case 't':
		if len(args) == 0 {
			return Nullary{K: ToggleAll}, nil
		}
		return positional(ToggleAtAlt, args, token)
	case 'T':
		return positional(ToggleAt, args, token)
	case 'z':
		return positional(DuplicateFirst, args, token)
	case 'Z':
		return positional(DuplicateLast, args, token)
	case 'D':
		return positional(DeleteAt, args, token)
	case '$':
		if len(args) != 1 {
			return nil, fmt.Errorf("rule %q: want one character", token)
		}
		return Char{K: Append, X: args[0]}, nil
	case '^':
		if len(args) != 1 {
			return nil, fmt.Errorf("rule %q: want one character", token)
		}
		return Char{K: Prepend, X: args[0]}, nil
	case 'i', 'o':
		if len(args) != 2 {
			return nil, fmt.Errorf("rule %q: want position and character", token)
		}
		n, ok := DecodePosition(args[0])
		if !ok {
			return nil, fmt.Errorf("rule %q: bad position %q", token, args[0])
		}
		k := InsertAt
		if r[0] == 'o' {
			k = OverwriteAt
		}
		return PositionalChar{K: k, N: n, X: args[1]}, nil
	case 's':
		if len(args) != 2 {
			return nil, fmt.Errorf("rule %q: want two characters", token)
		}
		return Substitution{X: args[0], Y: args[1]}, nil
	default:
		return nil, fmt.Errorf("unsupported rule %q", token)
	}
}

func nullary(k Kind, args []rune, token string) (Rule, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("rule %q takes no arguments", token)
	}
	return Nullary{K: k}, nil
}

func positional(k Kind, args []rune, token string) (Rule, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("rule %q: want one position", token)
	}
	n, ok := DecodePosition(args[0])
	if !ok {
		return nil, fmt.Errorf("rule %q: bad position %q", token, args[0])
	}
	return Positional{K: k, N: n}, nil
}

// ParseSequence parses a space-separated rule line such as "c $1 $2".
func ParseSequence(line string) ([]Rule, error) {
	tokens := splitTokens(line)
	out := make([]Rule, 0, len(tokens))
	for _, tok := range tokens {
		r, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// splitTokens splits a rule line into tokens. Arity decides where each token
// ends, so a character argument may itself be a space (e.g. "$ ").
func splitTokens(line string) []string {
	r := wordlist.Runes(strings.TrimRight(line, "\r\n"))
	var out []string
	for i := 0; i < len(r); {
		if r[i] == ' ' {
			i++
			continue
		}
		n := tokenLen(r[i:])
		if i+n > len(r) {
			n = len(r) - i
		}
		out = append(out, wordlist.String(r[i:i+n]))
		i += n
	}
	return out
}

func tokenLen(r []rune) int {
	switch r[0] {
	case '$', '^', 'T', 'z', 'Z', 'D':
		return 2
	case 'i', 'o', 's':
		return 3
	case 't':
		if len(r) > 1 && r[1] != ' ' {
			if _, ok := DecodePosition(r[1]); ok {
				return 2
			}
		}
		return 1
	default:
		return 1
	}
}
