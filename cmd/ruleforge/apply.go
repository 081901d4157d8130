package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/rules"
	"ruleforge/internal/wordlist"
)

var (
	applyRuleFile string
	applyRules    []string
)

var applyCmd = &cobra.Command{
	Use:   "apply [word...]",
	Short: "Apply rules to words",
	Long: `Apply every rule line to every word and print the candidates, one per line,
grouped by word. Words come from the arguments or, when none are given, from
stdin. Rule lines that do not parse are reported and skipped.

Examples:
  ruleforge apply --rule 'c $1' password
  ruleforge apply -r rules.rule < seeds.txt`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyRuleFile, "rules", "r", "", "Rule file, one sequence per line")
	applyCmd.Flags().StringArrayVar(&applyRules, "rule", nil, "Rule sequence (repeatable)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	lines := append([]string(nil), applyRules...)
	if applyRuleFile != "" {
		data, err := os.ReadFile(applyRuleFile)
		if err != nil {
			return rferrors.New(rferrors.InputError, "cannot read rule file", err)
		}
		for _, l := range strings.Split(string(data), "\n") {
			l = strings.TrimSuffix(l, "\r")
			if l != "" && !strings.HasPrefix(l, "#") {
				lines = append(lines, l)
			}
		}
	}
	if len(lines) == 0 {
		return rferrors.New(rferrors.InputError, "no rules given (use --rule or --rules)", nil)
	}

	seqs := make([][]rules.Rule, 0, len(lines))
	for _, l := range lines {
		seq, err := rules.ParseSequence(l)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping rule %q: %v\n", l, err)
			continue
		}
		seqs = append(seqs, seq)
	}

	words := args
	if len(words) == 0 {
		var err error
		if words, err = wordlist.Read(cmd.InOrStdin()); err != nil {
			return rferrors.New(rferrors.InputError, "cannot read words from stdin", err)
		}
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	if err := applyAll(w, seqs, words); err != nil {
		return err
	}
	return w.Flush()
}

func applyAll(w io.Writer, seqs [][]rules.Rule, words []string) error {
	for _, word := range words {
		r := wordlist.Runes(word)
		for _, seq := range seqs {
			if _, err := io.WriteString(w, wordlist.String(rules.ApplyAll(seq, r))+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
