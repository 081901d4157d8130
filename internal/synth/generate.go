package synth

import (
	"fmt"
	"slices"
	"unicode"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/rules"
	"ruleforge/internal/wordlist"
)

// DeadEnd is attached to SYNTHESIS_DEAD_END errors.
type DeadEnd struct {
	Representative string   `json:"representative"`
	Password       string   `json:"password"`
	Reached        string   `json:"reached"`
	Partial        []string `json:"partial"`
}

// Generate returns the rule tokens that turn rep into pw. Equal inputs yield
// [":"]. When no catalog rule makes progress the error carries code
// SYNTHESIS_DEAD_END and a *DeadEnd with the partial sequence.
func (e *Engine) Generate(rep, pw string) ([]string, error) {
	if rep == pw {
		return []string{":"}, nil
	}
	current := wordlist.Runes(rep)
	target := wordlist.Runes(pw)
	return e.search(e.catalog, rep, pw, current, target, nil)
}

// GenerateFold is the case-insensitive variant. A single l, u or c is used
// when it explains the whole difference, otherwise one T<i> per aligned
// letter whose case differs. When only case differs the tokens replay to pw
// exactly. Otherwise the remaining edits are searched on the lowercased
// strings with the fold catalog, so replaying the result matches pw only up
// to letter case.
func (e *Engine) GenerateFold(rep, pw string) ([]string, error) {
	if rep == pw {
		return []string{":"}, nil
	}

	r := wordlist.Runes(rep)
	p := wordlist.Runes(pw)
	for _, k := range []rules.Kind{rules.Lower, rules.Upper, rules.Capitalize} {
		if slices.Equal(rules.Nullary{K: k}.Apply(r), p) {
			return []string{k.Name()}, nil
		}
	}

	var tokens []string
	cased := slices.Clone(r)
	for i := 0; i < min(len(r), len(p)) && i <= rules.MaxPosition; i++ {
		if unicode.IsLetter(r[i]) && r[i] != p[i] && rules.SwapCase(r[i]) == p[i] {
			toggle := rules.Positional{K: rules.ToggleAt, N: i}
			tok, _ := toggle.Token()
			tokens = append(tokens, tok)
			cased = toggle.Apply(cased)
		}
	}

	lower := rules.Nullary{K: rules.Lower}.Apply(r)
	target := rules.Nullary{K: rules.Lower}.Apply(p)
	if slices.Equal(lower, target) && !slices.Equal(cased, p) {
		// Case differs only past the last encodable position.
		return nil, rferrors.New(rferrors.SynthesisDeadEnd,
			fmt.Sprintf("case of %q cannot be toggled to %q", rep, pw), nil).
			WithDetails(&DeadEnd{Representative: rep, Password: pw, Reached: wordlist.String(cased), Partial: tokens})
	}
	return e.search(e.fold, rep, pw, lower, target, tokens)
}

func (e *Engine) search(catalog *rules.Catalog, rep, pw string, current, target []rune, tokens []string) ([]string, error) {
	for !slices.Equal(current, target) {
		step, ok := FindBestRule(catalog, current, target)
		if !ok {
			partial := append([]string(nil), tokens...)
			err := rferrors.New(rferrors.SynthesisDeadEnd,
				fmt.Sprintf("no rule moves %q closer to %q", wordlist.String(current), wordlist.String(target)), nil)
			return nil, err.WithDetails(&DeadEnd{
				Representative: rep,
				Password:       pw,
				Reached:        wordlist.String(current),
				Partial:        partial,
			})
		}
		tokens = append(tokens, step.Token)
		current = step.Next
	}
	return tokens, nil
}
