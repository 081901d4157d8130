// Package aggregate counts synthesised rules and writes the ranked rule file.
package aggregate

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Granularity selects which entries a rule sequence contributes.
type Granularity string

const (
	// Combo counts the whole space-joined sequence as one rule line.
	Combo Granularity = "combo"
	// Atomic counts every token separately.
	Atomic Granularity = "atomic"
	// Both counts the tokens and, for sequences of more than one token,
	// the combined line.
	Both Granularity = "both"
)

// ParseGranularity validates a granularity name. Empty selects Combo.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(s)); g {
	case "":
		return Combo, nil
	case Combo, Atomic, Both:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want combo, atomic or both)", s)
	}
}

// Entry is a rule line and how often it was produced.
type Entry struct {
	Rule  string `json:"rule" yaml:"rule" toml:"rule"`
	Count int    `json:"count" yaml:"count" toml:"count"`
}

// Counter counts rule lines, remembering the order they were first seen.
type Counter struct {
	index   map[string]int
	entries []Entry
	total   int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{index: make(map[string]int)}
}

// Add counts one occurrence of rule.
func (c *Counter) Add(rule string) {
	c.total++
	if i, ok := c.index[rule]; ok {
		c.entries[i].Count++
		return
	}
	c.index[rule] = len(c.entries)
	c.entries = append(c.entries, Entry{Rule: rule, Count: 1})
}

// AddSequence counts the entries a synthesised sequence contributes under g.
func (c *Counter) AddSequence(tokens []string, g Granularity) {
	if len(tokens) == 0 {
		return
	}
	switch g {
	case Atomic:
		for _, t := range tokens {
			c.Add(t)
		}
	case Both:
		for _, t := range tokens {
			c.Add(t)
		}
		if len(tokens) > 1 {
			c.Add(strings.Join(tokens, " "))
		}
	default:
		c.Add(strings.Join(tokens, " "))
	}
}

// Len is the number of distinct rules.
func (c *Counter) Len() int { return len(c.entries) }

// Total is the number of counted occurrences.
func (c *Counter) Total() int { return c.total }

// Top returns the k most frequent rules, most frequent first. Equal counts
// keep first-seen order. k <= 0 returns every rule.
func (c *Counter) Top(k int) []Entry {
	out := slices.Clone(c.entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Count - a.Count
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// WriteRules writes one rule per line exactly as stored.
func WriteRules(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		bw.WriteString(e.Rule)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
