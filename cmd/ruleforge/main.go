package main

import (
	"errors"
	"fmt"
	"os"

	rferrors "ruleforge/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(rferrors.ExitCode(err))
	}
}

// reportError prints a fatal error and the suggested fixes for its code.
func reportError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var rf *rferrors.RfError
	if !errors.As(err, &rf) || len(rf.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "\nSuggested fixes:")
	for _, fix := range rf.SuggestedFixes {
		if fix.Command != "" {
			fmt.Fprintf(os.Stderr, "  %s\n    %s\n", fix.Description, fix.Command)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s\n", fix.Description)
	}
}
