package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"pokeflow/internal/config"
	"pokeflow/internal/model"
	"pokeflow/internal/pipeline"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runFlags struct {
	configPath    string
	baseURL       string
	endpoint      string
	params        []string
	resultsPath   string
	nextPath      string
	fromID        int
	toID          int
	groupBy       string
	stats         string
	output        string
	chart         string
	pageLimit     int
	retries       int
	timeout       float64
	prefetch      int
	expandLists   bool
	coerceStrings bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one analysis run",
	Example: `  pokeflow run --endpoint pokemon --from 1 --to 151 \
      --group-by types.type.name --stats "weight:mean,height:max" --output report.csv`,
	RunE: runAnalysis,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "", "config file (default "+config.ConfigFileName+")")
	f.StringVar(&runFlags.baseURL, "base-url", "", "API base URL")
	f.StringVar(&runFlags.endpoint, "endpoint", "", "endpoint path under the base URL")
	f.StringArrayVar(&runFlags.params, "param", nil, "query parameter key=value (repeatable)")
	f.StringVar(&runFlags.resultsPath, "results-path", "", "dot path to the record array in a page")
	f.StringVar(&runFlags.nextPath, "next-path", "", "dot path to the next-page link in a page")
	f.IntVar(&runFlags.fromID, "from", 0, "first id of an id-range fetch")
	f.IntVar(&runFlags.toID, "to", 0, "last id of an id-range fetch")
	f.StringVar(&runFlags.groupBy, "group-by", "", "column to group by")
	f.StringVar(&runFlags.stats, "stats", "", "statistics as col:stat,col:stat,...")
	f.StringVar(&runFlags.output, "output", "", "output file (.csv or .json)")
	f.StringVar(&runFlags.chart, "chart", "", "chart-data file for an external plotter")
	f.IntVar(&runFlags.pageLimit, "page-limit", 0, "max pages to fetch (0 = unlimited)")
	f.IntVar(&runFlags.retries, "retries", 0, "retry count for transient failures")
	f.Float64Var(&runFlags.timeout, "timeout", 0, "per-request timeout in seconds")
	f.IntVar(&runFlags.prefetch, "prefetch", 0, "concurrent workers for id-range fetches")
	f.BoolVar(&runFlags.expandLists, "expand-lists", false, "expand list fields into repeated rows")
	f.BoolVar(&runFlags.coerceStrings, "coerce-strings", false, "coerce conflicting column types to string")

	runCmd.MarkFlagRequired("group-by")
	runCmd.MarkFlagRequired("stats")
	rootCmd.AddCommand(runCmd)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runFlags.configPath)
	if err != nil {
		return err
	}
	spec, err := buildSpec(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return pipeline.Run(ctx, uuid.New().String(), spec)
}

// buildSpec merges config-file values with flags; a flag wins only when
// it was set on the command line.
func buildSpec(cmd *cobra.Command, cfg *config.Config) (model.RunSpec, error) {
	spec := model.RunSpec{
		Source:    cfg.Source,
		Fetch:     cfg.Fetch,
		Normalize: cfg.Normalize,
		Export:    cfg.Export,
	}

	f := cmd.Flags()
	if f.Changed("base-url") {
		spec.Source.BaseURL = runFlags.baseURL
	}
	if f.Changed("endpoint") {
		spec.Source.Endpoint = runFlags.endpoint
	}
	if f.Changed("results-path") {
		spec.Source.ResultsPath = runFlags.resultsPath
	}
	if f.Changed("next-path") {
		spec.Source.NextPath = runFlags.nextPath
	}
	if f.Changed("from") {
		spec.Source.FromID = runFlags.fromID
	}
	if f.Changed("to") {
		spec.Source.ToID = runFlags.toID
	}
	if f.Changed("page-limit") {
		spec.Fetch.PageLimit = runFlags.pageLimit
	}
	if f.Changed("retries") {
		spec.Fetch.RetryCount = runFlags.retries
	}
	if f.Changed("timeout") {
		spec.Fetch.TimeoutSeconds = runFlags.timeout
	}
	if f.Changed("prefetch") {
		spec.Fetch.Prefetch = runFlags.prefetch
	}
	if f.Changed("expand-lists") {
		spec.Normalize.ExpandLists = runFlags.expandLists
	}
	if f.Changed("coerce-strings") {
		spec.Normalize.CoerceStrings = runFlags.coerceStrings
	}
	if f.Changed("output") {
		spec.Export.File = runFlags.output
	}
	if f.Changed("chart") {
		spec.Export.Chart = runFlags.chart
	}

	if len(runFlags.params) > 0 {
		if spec.Source.Params == nil {
			spec.Source.Params = make(map[string]string)
		}
		for _, p := range runFlags.params {
			key, value, ok := strings.Cut(p, "=")
			if !ok {
				return spec, fmt.Errorf("invalid --param %q, want key=value", p)
			}
			spec.Source.Params[key] = value
		}
	}

	stats, err := parseStats(runFlags.stats)
	if err != nil {
		return spec, err
	}
	spec.Aggregation = model.Aggregation{GroupBy: runFlags.groupBy, Stats: stats}

	if spec.Source.FromID > 0 && spec.Source.ToID < spec.Source.FromID {
		return spec, fmt.Errorf("--to must be >= --from")
	}
	return spec, nil
}

// parseStats parses "power:mean,height:max" into stat requests.
func parseStats(s string) ([]model.Stat, error) {
	var stats []model.Stat
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		column, stat, ok := strings.Cut(part, ":")
		if !ok || column == "" || stat == "" {
			return nil, fmt.Errorf("invalid stat %q, want column:stat", part)
		}
		stats = append(stats, model.Stat{Column: column, Stat: stat})
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("at least one column:stat pair is required")
	}
	return stats, nil
}
