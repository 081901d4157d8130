package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ruleforge/internal/aggregate"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
)

// WriteRuleFile writes entries, one rule per line, to path. A path of "-"
// writes to stdout instead. Files are replaced atomically.
func WriteRuleFile(path string, entries []aggregate.Entry, stdout io.Writer) (err error) {
	if path == "-" {
		bw := bufio.NewWriter(stdout)
		if err := aggregate.WriteRules(bw, entries); err != nil {
			return err
		}
		return bw.Flush()
	}

	if err := paths.EnsureParent(path); err != nil {
		return rferrors.New(rferrors.InputError, "cannot create rule file directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ruleforge-*.rule")
	if err != nil {
		return rferrors.New(rferrors.InputError, "cannot create rule file", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = aggregate.WriteRules(bw, entries); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
