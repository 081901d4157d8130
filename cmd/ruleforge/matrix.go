package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ruleforge/internal/distmatrix"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
	"ruleforge/internal/wordlist"
)

var (
	matrixFromDir  string
	matrixCompress bool
	matrixForce    bool
	matrixJobs     int
)

var matrixCmd = &cobra.Command{
	Use:   "matrix [wordlist...]",
	Short: "Precompute distance matrices for --precomputed",
	Long: `Compute the pairwise edit-distance matrix of each wordlist and store it next
to the wordlist as <name>_distance_matrix.npy, with a .b2 digest sidecar that
lets 'generate --precomputed' detect a stale matrix.

Examples:
  ruleforge matrix leaked.txt
  ruleforge matrix --compress --generate-from wordlists/`,
	RunE: runMatrix,
}

func init() {
	fs := matrixCmd.Flags()
	fs.StringVar(&matrixFromDir, "generate-from", "", "Process every .txt file in this directory")
	fs.BoolVar(&matrixCompress, "compress", false, "Write zstd-compressed matrices (.npy.zst)")
	fs.BoolVar(&matrixForce, "force", false, "Rebuild even when an up-to-date matrix exists")
	fs.IntVarP(&matrixJobs, "jobs", "j", 1, "Wordlists processed in parallel")
	fs.Int("max-distance", 0, "Edit distance bound (default 100)")

	rootCmd.AddCommand(matrixCmd)
}

func runMatrix(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	lists := append([]string(nil), args...)
	if matrixFromDir != "" {
		found, err := textFiles(matrixFromDir)
		if err != nil {
			return rferrors.New(rferrors.InputError, "cannot list wordlist directory", err)
		}
		lists = append(lists, found...)
	}
	if len(lists) == 0 {
		return rferrors.New(rferrors.InputError, "no wordlist given", nil)
	}
	for _, wl := range lists {
		if paths.IsMatrixFile(wl) {
			return rferrors.Newf(rferrors.InputError, "%s is a distance matrix, pass its wordlist instead", wl)
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(matrixJobs, 1))
	for _, wl := range lists {
		g.Go(func() error {
			return buildMatrix(ctx, wl, cfg.MaxDistance, logger.With("wordlist", wl))
		})
	}
	return g.Wait()
}

func buildMatrix(ctx context.Context, wl string, maxDistance int, logger *slog.Logger) error {
	digest, err := wordlist.DigestFile(wl)
	if err != nil {
		return rferrors.New(rferrors.InputError, "cannot read wordlist", err)
	}

	if existing, ok := paths.FindMatrix(wl); ok && !matrixForce {
		if stored, err := distmatrix.StoredDigest(existing); err == nil && stored == digest {
			logger.Info("Matrix is up to date", "path", existing)
			return nil
		}
	}

	words, err := wordlist.ReadFile(wl)
	if err != nil {
		return rferrors.New(rferrors.InputError, "cannot read wordlist", err)
	}

	start := time.Now()
	m, err := distmatrix.Build(ctx, words, maxDistance)
	if err != nil {
		return err
	}

	out := paths.MatrixPath(wl, matrixCompress)
	if err := distmatrix.Save(out, m, digest); err != nil {
		return rferrors.New(rferrors.InputError, fmt.Sprintf("cannot write %s", out), err)
	}
	// Drop the twin in the other encoding so FindMatrix only sees this one.
	_ = os.Remove(paths.MatrixPath(wl, !matrixCompress))
	_ = os.Remove(paths.DigestPath(paths.MatrixPath(wl, !matrixCompress)))

	logger.Info("Wrote distance matrix",
		"path", out,
		"size", m.Size(),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

// textFiles lists the .txt files of dir in name order.
func textFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
