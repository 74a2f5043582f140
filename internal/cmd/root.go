// Package cmd implements the pokeflow command tree.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"pokeflow/internal/aggregate"
	"pokeflow/internal/normalize"

	"github.com/spf13/cobra"
)

// Version is the current version of pokeflow.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "pokeflow",
	Short: "Fetch, normalize and aggregate records from a public JSON API",
	Long: `pokeflow pulls records from a paginated REST API, flattens the JSON
into a table, computes grouped statistics and writes a CSV report.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Exit codes: 0 on success, 2 for schema or
// column errors, 1 for everything else (network, HTTP, IO).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var schemaErr *normalize.SchemaConflictError
	var columnErr *aggregate.ColumnNotFoundError
	if errors.As(err, &schemaErr) || errors.As(err, &columnErr) {
		return 2
	}
	return 1
}
