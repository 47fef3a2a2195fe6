package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tabq/internal/cli/config"
	"github.com/leapstack-labs/tabq/internal/dataset"
	"github.com/leapstack-labs/tabq/internal/engine"
	"github.com/leapstack-labs/tabq/internal/plan"
	"github.com/leapstack-labs/tabq/internal/render"
	"github.com/leapstack-labs/tabq/internal/schema"
	"github.com/leapstack-labs/tabq/internal/session"
)

func runQueryREPL(cmd *cobra.Command, res *dataset.LoadResult, eng *engine.Engine, reg *schema.Registry, opts *QueryOptions) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	mem := session.NewMemory(
		session.WithLimits(cfg.HistoryUser, cfg.HistoryBot),
		session.WithLogger(logger),
	)

	historyFile := filepath.Join(os.TempDir(), "tabq_history")
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".tabq_history")
	}

	// Configure readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tabq> ",
		HistoryFile:     historyFile,
		AutoComplete:    newPlanCompleter(reg),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := render.New(cmd.OutOrStdout(), render.WithMaxRows(cfg.MaxRenderRows))
	r.Header(cfg.AppTitle)
	r.InfoPanel(res.RowCount(),
		res.MinDate.Format("2006-01-02"),
		res.MaxDate.Format("2006-01-02"),
		cfg.DatasetPath)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Enter a query plan as JSON. Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	// REPL loop
	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt("tabq> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 {
			// Plain-word session commands, matched only at statement start
			switch {
			case session.IsExitCommand(line):
				r.Message("Goodbye.")
				return nil
			case session.IsResetCommand(line):
				mem.Clear()
				r.Message("Session memory cleared.")
				continue
			case session.IsHelpCommand(line):
				printREPLHelp(cmd.OutOrStdout())
				continue
			}

			// Handle dot-commands
			if strings.HasPrefix(line, ".") {
				if handleDotCommand(cmd, r, reg, mem, line, opts) {
					if line == ".quit" || line == ".exit" {
						break
					}
					continue
				}
			}
		}

		// Accumulate multi-line JSON until braces balance
		multiLineBuffer.WriteString(line)
		if braceDepth(multiLineBuffer.String()) > 0 {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt("  ...> ")
			continue
		}
		rl.SetPrompt("tabq> ")

		raw := multiLineBuffer.String()
		multiLineBuffer.Reset()

		mem.PushUser(raw)
		if err := executePlanLine(r, eng, reg, mem, raw, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			mem.PushBot(fmt.Sprintf("error: %v", err))
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func executePlanLine(r *render.Renderer, eng *engine.Engine, reg *schema.Registry, mem *session.Memory, raw string, opts *QueryOptions) error {
	p, err := plan.Decode([]byte(raw), reg)
	if err != nil {
		return err
	}

	result, err := eng.ExecuteWithSubset(p)
	if err != nil {
		return err
	}
	mem.SetLastPlan(p)
	mem.PushBot(fmt.Sprintf("%d result rows from %d source rows", result.Table.Len(), result.Subset.Len()))

	if err := r.Table(result.Table, "Result", opts.Format); err != nil {
		return err
	}
	if opts.Subset && opts.Format == render.FormatTable {
		return r.SubsetSample(result.Subset, "Rows used", opts.SubsetRows)
	}
	return nil
}

func handleDotCommand(cmd *cobra.Command, r *render.Renderer, reg *schema.Registry, mem *session.Memory, line string, opts *QueryOptions) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())
		return true

	case ".schema":
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Dimensions: %s\n", strings.Join(reg.Dimensions, ", "))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Metrics:    %s\n", strings.Join(reg.NumericColumns, ", "))
		return true

	case ".last":
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), mem.LastPlanJSON())
		return true

	case ".history":
		history := mem.HistoryString(session.DefaultHistory)
		if history == "" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(no history)")
			return true
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), history)
		return true

	case ".subset":
		opts.Subset = !opts.Subset
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Provenance sample: %v\n", opts.Subset)
		return true

	case ".reset":
		mem.Clear()
		r.Message("Session memory cleared.")
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help       Show this help message
  .schema     List dimensions and metrics of the loaded dataset
  .last       Print the last executed plan as JSON
  .history    Show recent conversation turns
  .subset     Toggle rendering of the provenance sample
  .reset      Clear session memory
  .clear      Clear the screen
  .quit       Exit the REPL

Tips:
  - Plans are JSON objects; an opening brace continues onto new lines
    until the braces balance
  - Plain "exit", "reset" or "help" work too
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// braceDepth counts unmatched opening braces outside of string literals.
func braceDepth(s string) int {
	depth := 0
	inString := false
	escaped := false
	for _, c := range s {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
			}
		}
	}
	return depth
}

// newPlanCompleter creates a readline completer for column names and
// dot-commands.
func newPlanCompleter(reg *schema.Registry) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, col := range reg.CanonicalColumns() {
		items = append(items, readline.PcItem(col))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".last"),
		readline.PcItem(".history"),
		readline.PcItem(".subset"),
		readline.PcItem(".reset"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
