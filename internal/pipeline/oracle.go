package pipeline

import (
	"io"
	"log/slog"

	"ruleforge/internal/aggregate"
	"ruleforge/internal/cluster"
	"ruleforge/internal/config"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/rules"
)

// OracleFor returns the clustering method cfg selects. It returns nil for
// the external method, whose clusters arrive as a payload.
func OracleFor(cfg *config.Config) (cluster.Oracle, error) {
	switch cfg.Method {
	case config.MethodHAC:
		return cluster.HAC{Threshold: cfg.HAC.DistanceThreshold}, nil
	case config.MethodAP:
		return cluster.AffinityPropagation{
			Damping:         cfg.AP.Damping,
			ConvergenceIter: cfg.AP.ConvergenceIter,
			MaxIter:         cfg.AP.MaxIter,
			Seed:            cfg.AP.Seed,
		}, nil
	case config.MethodDBSCAN:
		return cluster.DBSCAN{Eps: cfg.DBSCAN.Eps, MinPoints: cfg.DBSCAN.MinPoints}, nil
	case config.MethodMDBSCAN:
		return cluster.MDBSCAN{Eps: cfg.DBSCAN.Eps, MinPoints: cfg.DBSCAN.MinPoints, Eps2: cfg.DBSCAN.Eps2}, nil
	case config.MethodExternal:
		return nil, nil
	case "":
		return nil, cfg.RequireMethod()
	default:
		return nil, rferrors.Newf(rferrors.ConfigInvalid, "unknown clustering method %q", cfg.Method)
	}
}

// OptionsFromConfig translates a validated config into run options. stdin
// is the payload source for the external method.
func OptionsFromConfig(cfg *config.Config, stdin io.Reader, logger *slog.Logger) (Options, error) {
	opts := Options{
		Wordlist:        cfg.Wordlist,
		ChunkSize:       cfg.ChunkSize,
		MaxDistance:     cfg.MaxDistance,
		Precomputed:     cfg.Precomputed,
		RemoveOutliers:  cfg.RemoveOutliers,
		MostFrequent:    cfg.MostFrequent,
		CaseInsensitive: cfg.CaseInsensitive,
	}

	g, err := aggregate.ParseGranularity(cfg.Granularity)
	if err != nil {
		return Options{}, rferrors.New(rferrors.ConfigInvalid, "invalid granularity", err)
	}
	opts.Granularity = g

	oracle, err := OracleFor(cfg)
	if err != nil {
		return Options{}, err
	}
	if oracle == nil {
		opts.External = stdin
	} else {
		opts.Oracle = oracle
		if cfg.Wordlist == "" {
			return Options{}, rferrors.New(rferrors.InputError, "no wordlist given", nil)
		}
	}

	if cfg.RulePriority != "" {
		cat, err := rules.LoadPriority(cfg.RulePriority, logger)
		if err != nil {
			return Options{}, err
		}
		opts.Catalog = cat
	}
	return opts, nil
}
