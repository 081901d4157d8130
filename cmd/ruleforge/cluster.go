package main

import (
	"bufio"

	"github.com/spf13/cobra"

	"ruleforge/internal/cluster"
	"ruleforge/internal/config"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/pipeline"
)

var (
	clusterDBSCAN  bool
	clusterMDBSCAN bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <wordlist>",
	Short: "Cluster a wordlist and print the clustering JSON",
	Long: `Cluster a wordlist without synthesising rules and print the result as the
JSON payload 'generate --external' reads:

  {"0": {"members": ["pass", "pass1"], "representative": "pass"}, "-1": {...}}

Labels are unique across chunks and every chunk's noise is merged into "-1".

Examples:
  ruleforge cluster --mdbscan leaked.txt > clusters.json
  ruleforge cluster --dbscan --eps 2 leaked.txt | ruleforge generate --external --remove-outliers`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	fs := clusterCmd.Flags()
	fs.StringP("method", "m", "", "Clustering method: hac, ap, dbscan, mdbscan")
	fs.BoolVar(&clusterDBSCAN, "dbscan", false, "Shorthand for --method dbscan")
	fs.BoolVar(&clusterMDBSCAN, "mdbscan", false, "Shorthand for --method mdbscan")
	addClusterFlags(fs)

	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()

	cfg.Wordlist = args[0]
	switch {
	case clusterMDBSCAN:
		cfg.Method = config.MethodMDBSCAN
	case clusterDBSCAN:
		cfg.Method = config.MethodDBSCAN
	}
	if cfg.Method == config.MethodExternal {
		return rferrors.New(rferrors.ConfigInvalid, "cluster needs an in-process method", nil)
	}

	opts, err := pipeline.OptionsFromConfig(cfg, nil, logger)
	if err != nil {
		return err
	}

	clusters, _, err := pipeline.Cluster(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	if err := cluster.EncodePayload(w, clusters); err != nil {
		return err
	}
	return w.Flush()
}
