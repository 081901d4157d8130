package pipeline

import (
	"strconv"

	"ruleforge/internal/config"
	"ruleforge/internal/storage"
)

// HistoryRun converts a finished run into its history record.
func HistoryRun(cfg *config.Config, res *Result) *storage.Run {
	params := map[string]string{
		"chunkSize":       strconv.Itoa(cfg.ChunkSize),
		"maxDistance":     strconv.Itoa(cfg.MaxDistance),
		"granularity":     cfg.Granularity,
		"mostFrequent":    strconv.Itoa(cfg.MostFrequent),
		"precomputed":     strconv.FormatBool(cfg.Precomputed),
		"removeOutliers":  strconv.FormatBool(cfg.RemoveOutliers),
		"caseInsensitive": strconv.FormatBool(cfg.CaseInsensitive),
	}
	if cfg.RulePriority != "" {
		params["rulePriority"] = cfg.RulePriority
	}
	switch cfg.Method {
	case config.MethodHAC:
		params["distanceThreshold"] = strconv.FormatFloat(cfg.HAC.DistanceThreshold, 'g', -1, 64)
	case config.MethodAP:
		params["damping"] = strconv.FormatFloat(cfg.AP.Damping, 'g', -1, 64)
		params["convergenceIter"] = strconv.Itoa(cfg.AP.ConvergenceIter)
		params["maxIter"] = strconv.Itoa(cfg.AP.MaxIter)
		params["seed"] = strconv.FormatUint(cfg.AP.Seed, 10)
	case config.MethodDBSCAN, config.MethodMDBSCAN:
		params["eps"] = strconv.Itoa(cfg.DBSCAN.Eps)
		params["minPoints"] = strconv.Itoa(cfg.DBSCAN.MinPoints)
		if cfg.Method == config.MethodMDBSCAN {
			params["eps2"] = strconv.FormatFloat(cfg.DBSCAN.Eps2, 'g', -1, 64)
		}
	}

	wl := cfg.Wordlist
	if wl == "" {
		wl = "-"
	}
	return &storage.Run{
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		Wordlist:       wl,
		WordlistDigest: res.Digest,
		Method:         res.Method,
		Params:         params,
		Words:          res.Words,
		Chunks:         res.Chunks,
		Clusters:       res.Clusters,
		Pairs:          res.Pairs,
		DeadEnds:       res.DeadEnds,
		RuleFile:       cfg.RuleFile,
		Rules:          res.Entries,
	}
}
