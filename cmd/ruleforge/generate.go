package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"ruleforge/internal/config"
	"ruleforge/internal/metrics"
	"ruleforge/internal/paths"
	"ruleforge/internal/pipeline"
	"ruleforge/internal/storage"
)

var generateExternal bool

var generateCmd = &cobra.Command{
	Use:   "generate [wordlist]",
	Short: "Generate a ranked hashcat rule file from a wordlist",
	Long: `Cluster the wordlist chunk by chunk, synthesise the rules that turn each
cluster representative into its members and write them, most frequent first.

Examples:
  ruleforge generate --method hac leaked.txt
  ruleforge generate --method ap --most-frequent 500 -o top.rule leaked.txt
  ruleforge generate --method mdbscan --eps2 0.3 --case-insensitive leaked.txt
  ruleforge cluster --method mdbscan leaked.txt | ruleforge generate --external`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	fs := generateCmd.Flags()
	fs.StringP("output", "o", "", "Rule file to write, - for stdout (default rules.rule)")
	fs.StringP("method", "m", "", "Clustering method: hac, ap, dbscan, mdbscan, external")
	fs.BoolVar(&generateExternal, "external", false, "Read the clustering JSON from stdin (same as --method external)")
	fs.BoolVar(&generateExternal, "stdin", false, "Alias of --external")
	fs.Bool("remove-outliers", false, "Skip the noise cluster")
	fs.Int("most-frequent", 0, "Keep only the top N rules (0 keeps all)")
	fs.String("rule-priority", "", "File listing rule names in the order to try them")
	fs.String("granularity", "", "Output entries: combo, atomic or both (default combo)")
	fs.Bool("case-insensitive", false, "Explain case differences first, then search case-folded")
	fs.Bool("history", false, "Record the run in the history database")
	fs.String("history-path", "", "History database (default ~/.ruleforge/history.db)")
	fs.String("metrics-textfile", "", "Write run metrics in Prometheus text format to this file")
	addClusterFlags(fs)

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	if len(args) == 1 {
		cfg.Wordlist = args[0]
	}
	if generateExternal {
		cfg.Method = config.MethodExternal
	}
	if err := cfg.RequireMethod(); err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg, cmd.InOrStdin(), logger)
	if err != nil {
		return err
	}
	if opts.External != nil && isatty.IsTerminal(os.Stdin.Fd()) {
		logger.Warn("Waiting for clustering JSON on stdin")
	}

	res, err := pipeline.Run(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}

	if err := pipeline.WriteRuleFile(cfg.RuleFile, res.Entries, cmd.OutOrStdout()); err != nil {
		return err
	}
	if cfg.RuleFile != "-" {
		logger.Info("Wrote rule file", "path", cfg.RuleFile, "rules", len(res.Entries), "distinct", res.Distinct)
	}

	if cfg.History.Enabled {
		if err := recordHistory(cmd.Context(), cfg, res, logger); err != nil {
			logger.Error("Could not record run history", "error", err.Error())
		}
	}

	if cfg.Metrics.Textfile != "" {
		rec := metrics.NewRecorder()
		rec.Observe(metrics.RunStats{
			Method:   res.Method,
			Words:    res.Words,
			Clusters: res.Clusters,
			Pairs:    res.Pairs,
			DeadEnds: res.DeadEnds,
			Rules:    len(res.Entries),
			Seconds:  res.FinishedAt.Sub(res.StartedAt).Seconds(),
		})
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("Could not write metrics", "path", cfg.Metrics.Textfile, "error", err.Error())
		}
	}
	return nil
}

func recordHistory(ctx context.Context, cfg *config.Config, res *pipeline.Result, logger *slog.Logger) error {
	path, err := historyPath(cfg)
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	run := pipeline.HistoryRun(cfg, res)
	if err := storage.NewRunRepository(db).Record(ctx, run); err != nil {
		return err
	}
	logger.Info("Recorded run", "id", run.ID, "took", run.Duration().Round(time.Millisecond).String())
	return nil
}

func historyPath(cfg *config.Config) (string, error) {
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	return paths.DefaultHistoryPath()
}
