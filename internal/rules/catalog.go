package rules

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultOrder is the priority in which the synthesis engine tries rule kinds.
var DefaultOrder = []Kind{
	Noop, Lower, Upper, Capitalize, ToggleAll, ToggleAt,
	DuplicateFirst, DuplicateLast, Append, Prepend,
	DeleteFirst, DeleteLast, DeleteAt, InsertAt, OverwriteAt,
	RotateRight, RotateLeft, Reverse, Substitute,
}

// FoldOrder is the catalog used after case differences have been resolved
// in case-insensitive mode.
var FoldOrder = []Kind{
	Substitute, DuplicateFirst, DuplicateLast, Append, Prepend,
	DeleteFirst, DeleteLast, DeleteAt, InsertAt,
}

// Catalog is an ordered list of rule kinds. Earlier kinds win ties.
type Catalog struct {
	kinds []Kind
}

// Default returns the catalog in DefaultOrder.
func Default() *Catalog {
	return New(DefaultOrder)
}

// Fold returns the catalog in FoldOrder.
func Fold() *Catalog {
	return New(FoldOrder)
}

// New builds a catalog from kinds, dropping invalid kinds and repeats.
func New(kinds []Kind) *Catalog {
	seen := make(map[Kind]bool, len(kinds))
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if !k.Valid() || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return &Catalog{kinds: out}
}

// Kinds returns a copy of the catalog order.
func (c *Catalog) Kinds() []Kind {
	return append([]Kind(nil), c.kinds...)
}

// Names returns the catalog order as rule names.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.kinds))
	for i, k := range c.kinds {
		names[i] = k.Name()
	}
	return names
}

// Len is the number of kinds in the catalog.
func (c *Catalog) Len() int { return len(c.kinds) }

// Contains reports whether k is part of the catalog.
func (c *Catalog) Contains(k Kind) bool {
	for _, have := range c.kinds {
		if have == k {
			return true
		}
	}
	return false
}

// Restrict keeps the kinds of c that also appear in other, in c's order.
func (c *Catalog) Restrict(other *Catalog) *Catalog {
	if other == nil {
		return c
	}
	out := make([]Kind, 0, len(c.kinds))
	for _, k := range c.kinds {
		if other.Contains(k) {
			out = append(out, k)
		}
	}
	return &Catalog{kinds: out}
}

// FromNames builds a catalog from rule names. Unknown names are returned
// separately so the caller can warn about them.
func FromNames(names []string) (*Catalog, []string) {
	kinds := make([]Kind, 0, len(names))
	var unknown []string
	for _, name := range names {
		k, ok := KindByName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		kinds = append(kinds, k)
	}
	return New(kinds), unknown
}

type priorityFile struct {
	Order []string `toml:"order"`
}

// LoadPriority reads a rule priority override. Plain files hold one rule
// name per line with blank lines and # comments ignored; .toml files hold
// an order array. A missing or unusable file falls back to the default
// catalog with a warning.
func LoadPriority(path string, logger *slog.Logger) (*Catalog, error) {
	names, err := readPriorityNames(path, logger)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Rule priority file not found, using default order", "path", path)
			return Default(), nil
		}
		return nil, err
	}

	cat, unknown := FromNames(names)
	for _, name := range unknown {
		logger.Warn("Unknown rule in priority file, skipping", "rule", name, "path", path)
	}
	if cat.Len() == 0 {
		logger.Warn("Rule priority file names no known rules, using default order", "path", path)
		return Default(), nil
	}
	logger.Debug("Loaded rule priority", "path", path, "order", strings.Join(cat.Names(), " "))
	return cat, nil
}

func readPriorityNames(path string, logger *slog.Logger) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var pf priorityFile
		md, err := toml.DecodeFile(path, &pf)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, err
			}
			return nil, fmt.Errorf("parse rule priority %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			logger.Warn("Ignoring unknown key in rule priority file", "key", key.String(), "path", path)
		}
		return pf.Order, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rule priority %s: %w", path, err)
	}
	return names, nil
}
