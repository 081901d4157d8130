package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"ruleforge/internal/cluster"
	rferrors "ruleforge/internal/errors"
)

// Cluster runs only the chunking and clustering stages. Labels are
// renumbered in chunk order so they stay unique across chunks, and the
// noise of every chunk is merged into one NoiseLabel cluster placed last.
// The merged noise cluster has no representative; the payload reader
// picks its medoid if it is ever used. The result can be fed back to Run
// through Options.External.
func Cluster(ctx context.Context, opts Options, logger *slog.Logger) ([]cluster.Cluster, *Result, error) {
	if opts.Oracle == nil {
		return nil, nil, rferrors.New(rferrors.NoClusterMethod, "no clustering method selected", nil)
	}

	st := newRunState(opts, logger)
	st.result.Method = opts.Oracle.Name()

	var (
		out   []cluster.Cluster
		noise []string
	)
	st.sink = func(_ context.Context, clusters []cluster.Cluster) error {
		for _, c := range clusters {
			if c.IsNoise() {
				noise = append(noise, c.Words...)
				continue
			}
			c.Label = strconv.Itoa(len(out))
			c.Indices = nil
			out = append(out, c)
		}
		return nil
	}

	if err := st.runChunks(ctx); err != nil {
		return nil, nil, err
	}
	if len(noise) > 0 {
		out = append(out, cluster.Cluster{Label: cluster.NoiseLabel, Words: noise})
	}

	st.result.Clusters = len(out)
	st.result.FinishedAt = time.Now()
	logger.Info("Clustering complete",
		"method", st.result.Method,
		"words", st.result.Words,
		"clusters", len(out),
		"noise", len(noise),
	)
	return out, st.result, nil
}
