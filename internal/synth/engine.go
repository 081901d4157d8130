// Package synth derives hashcat rule sequences that turn a cluster
// representative into each member password.
//
// The search is greedy: at every step the catalog is walked in priority order
// and the first rule whose result is strictly closer (in Levenshtein distance)
// to the target is taken. Sequences are therefore never longer than the
// starting distance, but they are not guaranteed to be the shortest.
package synth

import (
	"ruleforge/internal/editdist"
	"ruleforge/internal/rules"
)

// Engine synthesises rule sequences from a fixed catalog.
type Engine struct {
	catalog *rules.Catalog
	fold    *rules.Catalog
}

// NewEngine creates an engine. A nil catalog selects the default priority
// order. The case-insensitive catalog is the fold order restricted to the
// kinds of an explicit override.
func NewEngine(catalog *rules.Catalog) *Engine {
	fold := rules.Fold()
	if catalog == nil {
		catalog = rules.Default()
	} else if restricted := fold.Restrict(catalog); restricted.Len() > 0 {
		fold = restricted
	}
	return &Engine{catalog: catalog, fold: fold}
}

// Catalog returns the catalog used by Generate.
func (e *Engine) Catalog() *rules.Catalog { return e.catalog }

// FoldCatalog returns the catalog used by GenerateFold after case handling.
func (e *Engine) FoldCatalog() *rules.Catalog { return e.fold }

// Step is one accepted rule application.
type Step struct {
	Token string
	Next  []rune
}

// FindBestRule returns the first rule in catalog order whose application moves
// current strictly closer to target. ok is false when no rule helps.
func FindBestRule(catalog *rules.Catalog, current, target []rune) (Step, bool) {
	trace := editdist.Compute(current, target)
	base := len(trace)
	if base == 0 {
		return Step{}, false
	}

	for _, k := range catalog.Kinds() {
		r, ok := candidate(k, trace, current, target)
		if !ok {
			continue
		}
		token, err := r.Token()
		if err != nil {
			// Position does not encode, try the next kind.
			continue
		}
		next := r.Apply(current)
		if editdist.Distance(next, target, base-1) != editdist.TooLarge {
			return Step{Token: token, Next: next}, true
		}
	}
	return Step{}, false
}

// candidate binds the parameters of kind k from the first edit operation of
// the current alignment. It reports false when k does not apply.
func candidate(k rules.Kind, trace editdist.Trace, current, target []rune) (rules.Rule, bool) {
	first := trace[0]
	inRange := first.Src < len(current) && first.Dst < len(target)

	switch k.Shape() {
	case rules.ShapeNone:
		return rules.Nullary{K: k}, true
	case rules.ShapePosition:
		if !inRange {
			return nil, false
		}
		switch k {
		case rules.DuplicateFirst:
			n := leadingRepeats(target)
			if n <= 1 {
				return nil, false
			}
			return rules.Positional{K: k, N: n}, true
		case rules.DuplicateLast:
			n := trailingRepeats(target)
			if n <= 1 {
				return nil, false
			}
			return rules.Positional{K: k, N: n}, true
		default:
			return rules.Positional{K: k, N: first.Src}, true
		}
	case rules.ShapeChar:
		if len(target) == 0 {
			return nil, false
		}
		if k == rules.Prepend {
			op, ok := lastAtStart(trace)
			if !ok || op.Dst >= len(target) {
				return nil, false
			}
			return rules.Char{K: k, X: target[op.Dst]}, true
		}
		dst := first.Dst
		if dst >= len(target) {
			dst = len(target) - 1
		}
		return rules.Char{K: k, X: target[dst]}, true
	case rules.ShapePositionChar:
		if !inRange {
			return nil, false
		}
		return rules.PositionalChar{K: k, N: first.Src, X: target[first.Dst]}, true
	case rules.ShapeCharPair:
		if !inRange {
			return nil, false
		}
		return rules.Substitution{X: current[first.Src], Y: target[first.Dst]}, true
	}
	return nil, false
}

// lastAtStart returns the last operation touching source position 0.
func lastAtStart(trace editdist.Trace) (editdist.Op, bool) {
	var found editdist.Op
	ok := false
	for _, op := range trace {
		if op.Src == 0 {
			found, ok = op, true
		}
	}
	return found, ok
}

// leadingRepeats counts how often the first character repeats right after
// itself, e.g. 2 for "aaab".
func leadingRepeats(w []rune) int {
	n := 0
	for i := 1; i < len(w) && w[i] == w[0]; i++ {
		n++
	}
	return n
}

// trailingRepeats is leadingRepeats mirrored to the end of w.
func trailingRepeats(w []rune) int {
	if len(w) == 0 {
		return 0
	}
	last := w[len(w)-1]
	n := 0
	for i := len(w) - 2; i >= 0 && w[i] == last; i-- {
		n++
	}
	return n
}
