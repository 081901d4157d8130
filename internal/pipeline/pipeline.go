// Package pipeline drives a RuleForge run: wordlist, chunks, distance
// matrices, clusters, rule synthesis and frequency aggregation.
//
// Every stage works in the chunk-local index space; a precomputed
// whole-file matrix is sliced per chunk before clustering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"ruleforge/internal/aggregate"
	"ruleforge/internal/cluster"
	"ruleforge/internal/distmatrix"
	"ruleforge/internal/editdist"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/rules"
	"ruleforge/internal/synth"
	"ruleforge/internal/wordlist"
)

// Options configures a single run.
type Options struct {
	// Wordlist is the input path. Words, when non-nil, is used instead of
	// reading the file; Wordlist then only names the run.
	Wordlist string
	Words    []string

	// Oracle clusters each chunk. It is ignored when External is set.
	Oracle cluster.Oracle
	// External supplies a clustering payload that replaces chunking,
	// matrices and the oracle.
	External io.Reader

	ChunkSize       int
	MaxDistance     int
	Precomputed     bool
	RemoveOutliers  bool
	MostFrequent    int
	Granularity     aggregate.Granularity
	CaseInsensitive bool
	Catalog         *rules.Catalog
}

// Result summarises a finished run.
type Result struct {
	Method     string
	Digest     string
	Words      int
	Chunks     int
	Clusters   int
	Skipped    int // noise clusters dropped by RemoveOutliers
	Pairs      int
	DeadEnds   int
	Distinct   int
	Entries    []aggregate.Entry
	StartedAt  time.Time
	FinishedAt time.Time
}

// runState is owned by Run and threaded through the stages.
type runState struct {
	opts    Options
	logger  *slog.Logger
	engine  *synth.Engine
	counter *aggregate.Counter
	matrix  *distmatrix.Matrix // whole-file matrix when precomputed
	result  *Result
	// sink consumes the clusters of each chunk.
	sink func(ctx context.Context, clusters []cluster.Cluster) error
}

// Run executes the pipeline and returns the ranked rules. Only fatal errors
// are returned; dead ends are logged and counted.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (*Result, error) {
	if opts.External == nil && opts.Oracle == nil {
		return nil, rferrors.New(rferrors.NoClusterMethod, "no clustering method selected", nil)
	}

	st := newRunState(opts, logger)
	st.sink = st.synthesize

	var err error
	if opts.External != nil {
		st.result.Method = "external"
		err = st.runExternal(ctx)
	} else {
		st.result.Method = opts.Oracle.Name()
		err = st.runChunks(ctx)
	}
	if err != nil {
		return nil, err
	}

	st.result.Distinct = st.counter.Len()
	st.result.Entries = st.counter.Top(opts.MostFrequent)
	st.result.FinishedAt = time.Now()

	logger.Info("Run complete",
		"method", st.result.Method,
		"words", st.result.Words,
		"clusters", st.result.Clusters,
		"pairs", st.result.Pairs,
		"dead_ends", st.result.DeadEnds,
		"rules", len(st.result.Entries),
		"tokens", st.counter.Total(),
		"duration", st.result.FinishedAt.Sub(st.result.StartedAt).Round(time.Millisecond).String(),
	)
	return st.result, nil
}

func newRunState(opts Options, logger *slog.Logger) *runState {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = editdist.DefaultMaxDistance
	}
	return &runState{
		opts:    opts,
		logger:  logger,
		engine:  synth.NewEngine(opts.Catalog),
		counter: aggregate.NewCounter(),
		result:  &Result{StartedAt: time.Now()},
	}
}

func (st *runState) runExternal(ctx context.Context) error {
	clusters, err := cluster.DecodePayload(st.opts.External, st.opts.MaxDistance)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		st.result.Words += len(c.Words)
	}
	st.result.Chunks = 1
	st.logger.Debug("Decoded clustering payload", "clusters", len(clusters), "words", st.result.Words)
	return st.synthesize(ctx, clusters)
}

func (st *runState) runChunks(ctx context.Context) error {
	words, err := st.loadWords()
	if err != nil {
		return err
	}
	st.result.Words = len(words)

	if st.opts.Precomputed {
		if st.opts.Wordlist == "" {
			return rferrors.New(rferrors.ConfigInvalid, "a precomputed matrix needs a wordlist path", nil)
		}
		m, path, err := distmatrix.LoadFor(st.opts.Wordlist, len(words), st.result.Digest)
		if err != nil {
			return err
		}
		st.logger.Info("Loaded precomputed matrix", "path", path, "size", m.Size())
		st.matrix = m
	}

	chunks := wordlist.Chunks(words, st.opts.ChunkSize)
	st.result.Chunks = len(chunks)
	for _, chunk := range chunks {
		if err := st.processChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (st *runState) loadWords() ([]string, error) {
	if st.opts.Wordlist != "" {
		digest, err := wordlist.DigestFile(st.opts.Wordlist)
		if err != nil && st.opts.Words == nil {
			return nil, rferrors.New(rferrors.InputError, "cannot read wordlist", err)
		}
		st.result.Digest = digest
	}
	if st.opts.Words != nil {
		return st.opts.Words, nil
	}

	words, err := wordlist.ReadFile(st.opts.Wordlist)
	if err != nil {
		return nil, rferrors.New(rferrors.InputError, "cannot read wordlist", err)
	}
	if len(words) == 0 {
		st.logger.Warn("Wordlist is empty", "path", st.opts.Wordlist)
	}
	return words, nil
}

func (st *runState) processChunk(ctx context.Context, chunk wordlist.Chunk) error {
	logger := st.logger.With("chunk", chunk.Index)

	var (
		m   *distmatrix.Matrix
		err error
	)
	if st.matrix != nil {
		m, err = st.matrix.Slice(chunk.Offset, len(chunk.Words))
	} else {
		start := time.Now()
		m, err = distmatrix.Build(ctx, chunk.Words, st.opts.MaxDistance)
		if err == nil {
			logger.Debug("Built distance matrix", "size", m.Size(), "duration", time.Since(start).Round(time.Millisecond).String())
		}
	}
	if err != nil {
		return err
	}

	clusters, err := st.opts.Oracle.Cluster(ctx, chunk.Words, m)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return rferrors.New(rferrors.InternalError, fmt.Sprintf("%s clustering failed on chunk %d", st.opts.Oracle.Name(), chunk.Index), err)
	}
	logger.Debug("Clustered chunk", "words", len(chunk.Words), "clusters", len(clusters))
	return st.sink(ctx, clusters)
}

// synthesize derives a rule sequence from each cluster's representative to
// every member, the representative included.
func (st *runState) synthesize(ctx context.Context, clusters []cluster.Cluster) error {
	for _, c := range clusters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.opts.RemoveOutliers && c.IsNoise() {
			st.result.Skipped++
			continue
		}
		st.result.Clusters++

		for _, pw := range c.Words {
			if err := ctx.Err(); err != nil {
				return err
			}
			st.result.Pairs++

			tokens, err := st.generate(c.Representative, pw)
			if err != nil {
				if rferrors.IsFatal(rferrors.CodeOf(err)) {
					return err
				}
				st.result.DeadEnds++
				st.logDeadEnd(c.Label, err)
				continue
			}
			st.counter.AddSequence(tokens, st.opts.Granularity)
		}
	}
	return nil
}

func (st *runState) generate(rep, pw string) ([]string, error) {
	if st.opts.CaseInsensitive {
		return st.engine.GenerateFold(rep, pw)
	}
	return st.engine.Generate(rep, pw)
}

func (st *runState) logDeadEnd(label string, err error) {
	var rf *rferrors.RfError
	if !errors.As(err, &rf) {
		return
	}
	de, ok := rf.Details.(*synth.DeadEnd)
	if !ok {
		st.logger.Warn("Synthesis dead end", "cluster", label, "error", err.Error())
		return
	}
	st.logger.Warn("Synthesis dead end",
		"cluster", label,
		"representative", de.Representative,
		"password", de.Password,
		"reached", de.Reached,
		"partial", strings.Join(de.Partial, " "),
	)
}
