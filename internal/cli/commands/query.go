package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tabq/internal/cli/config"
	"github.com/leapstack-labs/tabq/internal/dataset"
	"github.com/leapstack-labs/tabq/internal/engine"
	"github.com/leapstack-labs/tabq/internal/plan"
	"github.com/leapstack-labs/tabq/internal/render"
	"github.com/leapstack-labs/tabq/internal/schema"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format     string
	Input      string
	Subset     bool
	SubsetRows int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [plan]",
		Short: "Execute a query plan against the dataset",
		Long: `Execute a structured query plan against the normalized dataset.

A plan selects an intent (aggregate, top_n, or trend), the metrics to
sum, grouping dimensions, a time window, and equality filters. The
answer always comes with the exact row-level subset it was computed
from.

When invoked without arguments on a terminal, enters interactive REPL
mode.`,
		Example: `  # Total revenue for 2022
  tabq query '{"intent":"aggregate","metrics":["revenue"],"time_range":{"type":"year","year":2022}}'

  # Top 5 campaigns by revenue in the last quarter
  tabq query '{"intent":"top_n","groupby":["campaign_name"],"time_range":{"type":"last_quarter"},"top_n":5,"sort_by":{"field":"revenue"}}'

  # Plan from a file (JSON or YAML), result as JSON
  tabq query --input plans/trend.yaml --format json

  # Show the provenance subset alongside the result
  tabq query --input plan.json --subset

  # Interactive mode
  tabq query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the plan from file (.json, .yaml, .yml)")
	cmd.Flags().BoolVar(&opts.Subset, "subset", false, "Also render a sample of the provenance subset")
	cmd.Flags().IntVar(&opts.SubsetRows, "subset-rows", 0, "Rows shown in the provenance sample")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	if opts.Format == "" {
		opts.Format = cfg.OutputFormat
	}
	if opts.SubsetRows == 0 {
		opts.SubsetRows = cfg.SubsetRows
	}

	loader := dataset.NewLoader(dataset.WithLogger(logger))
	res, err := loader.Load(cfg.DatasetPath)
	if err != nil {
		return err
	}
	eng := engine.New(res.Table, engine.WithLogger(logger))
	reg := schema.MarketingDefault()

	// Determine the plan source.
	var (
		planData []byte
		fromYAML bool
	)
	switch {
	case len(args) > 0:
		planData = []byte(strings.Join(args, " "))
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}
		planData = content
		ext := strings.ToLower(filepath.Ext(opts.Input))
		fromYAML = ext == ".yaml" || ext == ".yml"
	case !isTerminal(os.Stdin):
		// Piped input
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		planData = content
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, res, eng, reg, opts)
	}

	var p plan.Plan
	if fromYAML {
		p, err = plan.DecodeYAML(planData, reg)
	} else {
		p, err = plan.Decode(planData, reg)
	}
	if err != nil {
		return err
	}

	return executeAndRender(cmd, eng, p, opts)
}

func executeAndRender(cmd *cobra.Command, eng *engine.Engine, p plan.Plan, opts *QueryOptions) error {
	cfg := config.FromContext(cmd.Context())
	result, err := eng.ExecuteWithSubset(p)
	if err != nil {
		return err
	}

	r := render.New(cmd.OutOrStdout(), render.WithMaxRows(cfg.MaxRenderRows))
	if err := r.Table(result.Table, "Result", opts.Format); err != nil {
		return err
	}
	if opts.Subset && opts.Format == render.FormatTable {
		if err := r.SubsetSample(result.Subset, "Rows used", opts.SubsetRows); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
