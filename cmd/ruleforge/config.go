package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ruleforge/internal/config"
	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage RuleForge configuration",
	Long: `Settings come from defaults, a config file, RULEFORGE_* environment
variables and flags, later sources overriding earlier ones.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after merging all sources.

Examples:
  ruleforge config show
  ruleforge config show --format toml
  RULEFORGE_CHUNK_SIZE=5000 ruleforge config show --format yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	Run:   runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, toml, yaml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Encode(cmd.OutOrStdout(), configFormat); err != nil {
		return rferrors.New(rferrors.ConfigInvalid, "cannot render config", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) (err error) {
	path := paths.ConfigBaseName() + ".toml"
	if len(args) == 1 {
		path = args[0]
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if configForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return rferrors.Newf(rferrors.ConfigInvalid, "%s already exists (use --force to overwrite)", path)
		}
		return rferrors.New(rferrors.ConfigInvalid, "cannot create config file", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := config.WriteTemplate(f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Supported environment variables:")
	fmt.Fprintln(out)
	for _, key := range config.Keys() {
		fmt.Fprintf(out, "  %-36s %s\n", config.EnvName(key), key)
	}
}
