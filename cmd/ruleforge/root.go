package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ruleforge/internal/config"
	"ruleforge/internal/slogutil"
	"ruleforge/internal/version"
)

var (
	cfgFile   string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "ruleforge",
	Short: "RuleForge - derive hashcat rules from password clusters",
	Long: `RuleForge groups similar passwords of a wordlist, picks a representative
per group and infers the hashcat rules that turn each representative into the
other members. The rules are ranked by frequency and written to a rule file.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("ruleforge {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default .ruleforge.{json,toml,yaml} in the working directory)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("log-file", "", "Also append logs to this file")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}

// flagKeys maps command-line flags to config keys. Flags of every command
// share this table so the same name always means the same setting.
var flagKeys = map[string]string{
	"output":             "ruleFile",
	"method":             "method",
	"chunk-size":         "chunkSize",
	"max-distance":       "maxDistance",
	"distance-threshold": "hac.distanceThreshold",
	"damping":            "ap.damping",
	"convergence-iter":   "ap.convergenceIter",
	"max-iter":           "ap.maxIter",
	"seed":               "ap.seed",
	"eps":                "dbscan.eps",
	"min-points":         "dbscan.minPoints",
	"eps2":               "dbscan.eps2",
	"precomputed":        "precomputed",
	"remove-outliers":    "removeOutliers",
	"most-frequent":      "mostFrequent",
	"rule-priority":      "rulePriority",
	"granularity":        "granularity",
	"case-insensitive":   "caseInsensitive",
	"log-level":          "logging.level",
	"log-format":         "logging.format",
	"log-file":           "logging.file",
	"history":            "history.enabled",
	"history-path":       "history.path",
	"metrics-textfile":   "metrics.textfile",
}

// loadConfig merges defaults, the config file, RULEFORGE_* variables and
// the flags of cmd, then validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	bind := func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. -v and -q take precedence over the
// configured level.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	return slogutil.Setup(os.Stderr, slogutil.Options{
		Format:     cfg.Logging.Format,
		Level:      level,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// setup is the common prologue of every command that runs work.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, func() { _ = closer.Close() }, nil
}

// addClusterFlags registers the clustering parameters shared by generate
// and cluster.
func addClusterFlags(fs *pflag.FlagSet) {
	fs.Int("chunk-size", 0, "Passwords per chunk (default 10000)")
	fs.Int("max-distance", 0, "Edit distance bound used by the matrix (default 100)")
	fs.Bool("precomputed", false, "Load the distance matrix written by 'ruleforge matrix'")
	fs.Float64("distance-threshold", 0, "HAC: merge passwords closer than this (default 3)")
	fs.Float64("damping", 0, "AP: damping factor in [0.5, 1) (default 0.7)")
	fs.Int("convergence-iter", 0, "AP: stable iterations before stopping (default 15)")
	fs.Int("max-iter", 0, "AP: iteration limit (default 200)")
	fs.Uint64("seed", 0, "AP: seed of the tie-breaking noise")
	fs.Int("eps", 0, "DBSCAN: neighbourhood radius (default 1)")
	fs.Int("min-points", 0, "DBSCAN: minimum neighbourhood size (default 3)")
	fs.Float64("eps2", 0, "MDBSCAN: Jaro-Winkler distance bound (default 0.25)")
}
