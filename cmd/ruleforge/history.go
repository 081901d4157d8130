package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/storage"
)

var (
	historyLimit  int
	historyFormat string
	historyTop    int
	historyKeep   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Runs of 'generate --history' are stored in a SQLite database
(~/.ruleforge/history.db unless history.path is set).`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its top rules",
	Long: `Show a recorded run. The id may be abbreviated to any unique prefix.

Examples:
  ruleforge history show 3f2a
  ruleforge history show 3f2a --format yaml --top 0`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Delete recorded runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryRm,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().String("history-path", "", "History database (default ~/.ruleforge/history.db)")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyShowCmd.Flags().StringVar(&historyFormat, "format", "text", "Output format: text, json, yaml, toml")
	historyShowCmd.Flags().IntVar(&historyTop, "top", 20, "Rules to show (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "Number of newest runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(cmd *cobra.Command) (*storage.RunRepository, func(), error) {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	path, err := historyPath(cfg)
	if err != nil {
		done()
		return nil, nil, err
	}
	db, err := storage.Open(cmd.Context(), path, logger)
	if err != nil {
		done()
		return nil, nil, rferrors.New(rferrors.StorageError, "cannot open history database", err)
	}
	return storage.NewRunRepository(db), func() {
		_ = db.Close()
		done()
	}, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	runs, err := repo.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Use 'ruleforge generate --history' to record one.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMETHOD\tWORDS\tPAIRS\tDEAD ENDS\tWORDLIST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			r.Method,
			humanize.Comma(int64(r.Words)),
			humanize.Comma(int64(r.Pairs)),
			r.DeadEnds,
			r.Wordlist,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := repo.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return rferrors.Newf(rferrors.StorageError, "no run matches %q", args[0])
	}
	if historyTop > 0 && len(run.Rules) > historyTop {
		run.Rules = run.Rules[:historyTop]
	}
	return writeRun(cmd.OutOrStdout(), run, historyFormat)
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, id := range args {
		run, err := repo.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if run == nil {
			return rferrors.Newf(rferrors.StorageError, "no run matches %q", id)
		}
		if _, err := repo.Delete(cmd.Context(), run.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", run.ID)
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := repo.Prune(cmd.Context(), historyKeep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s run(s)\n", humanize.Comma(int64(n)))
	return nil
}

func writeRun(w io.Writer, run *storage.Run, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(run)
	case "text", "":
		return writeRunText(w, run)
	default:
		return rferrors.Newf(rferrors.ConfigInvalid, "unknown format %q (want text, json, yaml or toml)", format)
	}
}

func writeRunText(w io.Writer, run *storage.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Started:\t%s (%s)\n", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	fmt.Fprintf(tw, "Duration:\t%s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(tw, "Wordlist:\t%s\n", run.Wordlist)
	if run.WordlistDigest != "" {
		fmt.Fprintf(tw, "Digest:\t%s\n", run.WordlistDigest)
	}
	fmt.Fprintf(tw, "Method:\t%s\n", run.Method)
	for _, k := range slices.Sorted(maps.Keys(run.Params)) {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, run.Params[k])
	}
	fmt.Fprintf(tw, "Words:\t%s in %d chunk(s)\n", humanize.Comma(int64(run.Words)), run.Chunks)
	fmt.Fprintf(tw, "Clusters:\t%d\n", run.Clusters)
	fmt.Fprintf(tw, "Pairs:\t%d (%d dead ends)\n", run.Pairs, run.DeadEnds)
	fmt.Fprintf(tw, "Rule file:\t%s\n", run.RuleFile)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(run.Rules) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nTop rules:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, e := range run.Rules {
		fmt.Fprintf(tw, "%d.\t%s\t  %q\n", i+1, humanize.Comma(int64(e.Count)), e.Rule)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
