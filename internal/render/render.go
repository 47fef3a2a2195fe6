// Package render keeps all terminal presentation concerns in one place:
// session panels, assistant messages, and tabular output in several
// formats.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/tabq/internal/dataset"
)

// Output formats accepted by Table.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// subsetColumns is the preferred column order for provenance samples.
// Columns missing from the table are skipped.
var subsetColumns = []string{
	"row_id", "date", "year", "quarter", "month",
	"country", "product", "media_category", "campaign_name",
	"revenue", "cost", "profit",
}

// Styles holds the lipgloss styles for the panel elements.
type Styles struct {
	Header    lipgloss.Style
	Info      lipgloss.Style
	Assistant lipgloss.Style
	Warn      lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	return Styles{
		Header:    panel.BorderForeground(lipgloss.Color("6")).Bold(true),
		Info:      panel.BorderForeground(lipgloss.Color("2")),
		Assistant: panel.BorderForeground(lipgloss.Color("5")),
		Warn:      panel.BorderForeground(lipgloss.Color("3")),
	}
}

// Renderer writes presentation output to a single destination.
type Renderer struct {
	out     io.Writer
	styles  Styles
	maxRows int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMaxRows bounds the number of table rows printed; the rest is
// summarized in a caption.
func WithMaxRows(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.maxRows = n
		}
	}
}

// WithStyles overrides the default color scheme.
func WithStyles(s Styles) Option {
	return func(r *Renderer) { r.styles = s }
}

// New creates a Renderer writing to out.
func New(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:     out,
		styles:  DefaultStyles(),
		maxRows: 20,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Header prints the startup title panel.
func (r *Renderer) Header(title string) {
	fmt.Fprintln(r.out, r.styles.Header.Render(title))
}

// InfoPanel prints dataset and session information after a load.
func (r *Renderer) InfoPanel(rows int, minDate, maxDate, source string) {
	info := fmt.Sprintf("Dataset\n- Source: %s\n- Rows: %d\n- Date range: %s to %s",
		source, rows, minDate, maxDate)
	fmt.Fprintln(r.out, r.styles.Info.Render(info))
}

// Message prints an assistant reply panel.
func (r *Renderer) Message(text string) {
	fmt.Fprintln(r.out, r.styles.Assistant.Render(text))
}

// Table renders a result table in the requested format. The table format
// is bounded by maxRows; json, csv, and markdown emit every row since
// they feed scripts rather than eyes.
func (r *Renderer) Table(t *dataset.Table, title, format string) error {
	if t == nil || t.Len() == 0 {
		fmt.Fprintln(r.out, r.styles.Warn.Render("No rows to display."))
		return nil
	}
	switch format {
	case FormatJSON:
		return r.renderJSON(t)
	case FormatCSV:
		return r.renderCSV(t)
	case FormatMarkdown, "markdown":
		return r.renderMarkdown(t)
	default:
		return r.renderTable(t, title)
	}
}

// SubsetSample renders the first few provenance rows in the preferred
// column order.
func (r *Renderer) SubsetSample(t *dataset.Table, title string, maxRows int) error {
	if t == nil || t.Len() == 0 {
		fmt.Fprintln(r.out, r.styles.Warn.Render("No subset rows to display."))
		return nil
	}

	cols := make([]string, 0, len(subsetColumns))
	for _, c := range subsetColumns {
		if containsColumn(t.Columns(), c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		cols = t.Columns()
	}

	view := dataset.NewTable(cols)
	for i := 0; i < t.Len() && i < maxRows; i++ {
		view.Append(t.Row(i))
	}

	w := table.NewWriter()
	w.SetOutputMirror(r.out)
	w.SetStyle(table.StyleLight)
	w.SetTitle(title)
	w.AppendHeader(headerRow(cols))
	for i := 0; i < view.Len(); i++ {
		w.AppendRow(cellRow(view.Row(i), cols))
	}
	if t.Len() > maxRows {
		w.SetCaption("showing first %d of %d rows", maxRows, t.Len())
	}
	w.Render()
	return nil
}

func (r *Renderer) renderTable(t *dataset.Table, title string) error {
	cols := t.Columns()

	w := table.NewWriter()
	w.SetOutputMirror(r.out)
	w.SetStyle(table.StyleLight)
	if title != "" {
		w.SetTitle(title)
	}
	w.AppendHeader(headerRow(cols))

	n := t.Len()
	if n > r.maxRows {
		n = r.maxRows
	}
	for i := 0; i < n; i++ {
		w.AppendRow(cellRow(t.Row(i), cols))
	}
	if t.Len() > r.maxRows {
		w.SetCaption("showing first %d of %d rows", r.maxRows, t.Len())
	}
	w.Render()
	fmt.Fprintf(r.out, "(%d rows)\n", t.Len())
	return nil
}

func (r *Renderer) renderJSON(t *dataset.Table) error {
	results := make([]map[string]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		row := make(map[string]any, len(t.Columns()))
		for _, col := range t.Columns() {
			row[col] = nativeValue(t.Row(i).Value(col))
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func (r *Renderer) renderCSV(t *dataset.Table) error {
	cols := t.Columns()
	fmt.Fprintln(r.out, strings.Join(cols, ","))
	for i := 0; i < t.Len(); i++ {
		values := make([]string, len(cols))
		for j, col := range cols {
			values[j] = escapeCSV(t.Row(i).Value(col).String())
		}
		fmt.Fprintln(r.out, strings.Join(values, ","))
	}
	return nil
}

func (r *Renderer) renderMarkdown(t *dataset.Table) error {
	cols := t.Columns()
	fmt.Fprintf(r.out, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(r.out, "| %s |\n", strings.Join(seps, " | "))
	for i := 0; i < t.Len(); i++ {
		values := make([]string, len(cols))
		for j, col := range cols {
			values[j] = t.Row(i).Value(col).String()
		}
		fmt.Fprintf(r.out, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func headerRow(cols []string) table.Row {
	row := make(table.Row, len(cols))
	for i, col := range cols {
		row[i] = col
	}
	return row
}

func cellRow(r dataset.Row, cols []string) table.Row {
	row := make(table.Row, len(cols))
	for i, col := range cols {
		row[i] = r.Value(col).String()
	}
	return row
}

func nativeValue(v dataset.Value) any {
	switch v.Kind() {
	case dataset.KindNumber:
		return v.Float()
	case dataset.KindDate:
		return v.String()
	case dataset.KindString:
		return v.String()
	default:
		return nil
	}
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
