package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/tabq/internal/schema"
)

// Bounds on the offending-row samples carried by load errors.
const (
	maxDateSample    = 10
	maxRangeSample   = 15
	maxNumericSample = 10
)

var (
	quarterPattern = regexp.MustCompile(`Q\s*([1-4])`)
	monthPattern   = regexp.MustCompile(`M\s*(\d{1,2})`)
)

// dateLayouts are tried in order. First match wins, which keeps parsing
// deterministic across reloads.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// LoadResult pairs the normalized table with its date bounds.
type LoadResult struct {
	Table   *Table
	MinDate time.Time
	MaxDate time.Time
}

// RowCount returns the number of data rows loaded.
func (r *LoadResult) RowCount() int { return r.Table.Len() }

// Loader reads a raw tabular source and produces the normalized table.
//
// The pipeline is staged and fail-fast: column validation, renaming, date
// coercion, quarter/month coercion, range validation, numeric coercion,
// the revenue/cost null gate, the derived profit metric, and finally row
// identity. Any stage failure aborts the whole load; there is never a
// partial table.
type Loader struct {
	schema *schema.Registry
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSchema substitutes an alternate dataset registry.
func WithSchema(reg *schema.Registry) Option {
	return func(l *Loader) { l.schema = reg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader for the marketing default schema unless
// overridden with WithSchema.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		schema: schema.MarketingDefault(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads a CSV file and runs the normalization pipeline.
func (l *Loader) Load(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	res, err := l.Read(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return res, nil
}

// Read runs the normalization pipeline over CSV data from r.
func (l *Loader) Read(r io.Reader) (*LoadResult, error) {
	if err := l.schema.Validate(); err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, &SchemaError{Missing: l.schema.RawColumns}
	}
	header, data := records[0], records[1:]

	// Column validation + renaming. colIdx maps canonical names to source
	// column positions; extra source columns simply never get an entry.
	colIdx := make(map[string]int, len(header))
	for i, raw := range header {
		raw = strings.TrimSpace(raw)
		if canon, ok := l.schema.RenameMap[raw]; ok {
			colIdx[canon] = i
		}
	}
	var missing []string
	for _, raw := range l.schema.RawColumns {
		if _, ok := colIdx[l.schema.RenameMap[raw]]; !ok {
			missing = append(missing, raw)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	dateCol := l.schema.DateColumn
	columns := append(l.schema.CanonicalColumns(), schema.ColProfit, schema.ColRowID)
	table := NewTable(columns)

	// Date coercion. Every row must carry a parseable date before the
	// quarter/month fallback can rely on it.
	dates := make([]time.Time, len(data))
	var badDates []RowSample
	for i, rec := range data {
		t, ok := parseDate(field(rec, colIdx[dateCol]))
		if !ok {
			if len(badDates) < maxDateSample {
				badDates = append(badDates, sampleOf(i, rec))
			}
			continue
		}
		dates[i] = t
	}
	if len(badDates) > 0 {
		return nil, &TypeCoercionError{
			Column: dateCol,
			Reason: "unparseable date values",
			Sample: badDates,
		}
	}

	// Quarter/month coercion with range validation. Numeric values win
	// over pattern-extracted ones ("2020 Q3", "M08"); when both are
	// absent the parsed date decides.
	quarters := make([]int, len(data))
	months := make([]int, len(data))
	var badRange []RowSample
	for i, rec := range data {
		q, qok := parseQuarter(field(rec, colIdx["quarter"]))
		if !qok {
			q = int(dates[i].Month()-1)/3 + 1
		}
		m, mok := parseMonth(field(rec, colIdx["month"]))
		if !mok {
			m = int(dates[i].Month())
		}
		if q < 1 || q > 4 || m < 1 || m > 12 {
			if len(badRange) < maxRangeSample {
				badRange = append(badRange, sampleOf(i, rec))
			}
			continue
		}
		quarters[i], months[i] = q, m
	}
	if len(badRange) > 0 {
		return nil, &TypeCoercionError{
			Column: "quarter/month",
			Reason: "values outside quarter [1,4] / month [1,12] after parsing",
			Sample: badRange,
		}
	}

	// Numeric coercion and the revenue/cost null gate. Non-numeric
	// values become missing; missing revenue or cost is fatal.
	var badNumeric []RowSample
	rows := make([]Row, len(data))
	for i, rec := range data {
		row := NewRow()
		row.Set(dateCol, Date(dates[i]))
		row.Set("quarter", Number(float64(quarters[i])))
		row.Set("month", Number(float64(months[i])))

		for _, col := range l.schema.CanonicalColumns() {
			if col == dateCol || col == "quarter" || col == "month" {
				continue
			}
			raw := field(rec, colIdx[col])
			if l.schema.IsNumeric(col) {
				if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
					row.Set(col, Number(f))
				} else {
					row.Set(col, Null)
				}
			} else {
				row.Set(col, String(raw))
			}
		}

		if row.Value("revenue").IsNull() || row.Value("cost").IsNull() {
			if len(badNumeric) < maxNumericSample {
				badNumeric = append(badNumeric, sampleOf(i, rec))
			}
		}
		rows[i] = row
	}
	if len(badNumeric) > 0 {
		return nil, &TypeCoercionError{
			Column: "revenue/cost",
			Reason: "non-numeric or missing values after coercion",
			Sample: badNumeric,
		}
	}

	// Derived metric and row identity come strictly after validation:
	// profit is always consistent with validated inputs, and identity
	// depends only on source-of-truth fields.
	for i := range rows {
		rev, cost := rows[i].Value("revenue").Float(), rows[i].Value("cost").Float()
		rows[i].Set(schema.ColProfit, Number(rev-cost))
		rows[i].ID = l.rowID(rows[i])
		rows[i].Set(schema.ColRowID, String(rows[i].ID))
		table.Append(rows[i])
	}

	minDate, maxDate := dateBounds(dates)
	l.logger.Debug("dataset loaded",
		"rows", table.Len(),
		"min_date", minDate.Format("2006-01-02"),
		"max_date", maxDate.Format("2006-01-02"))

	return &LoadResult{Table: table, MinDate: minDate, MaxDate: maxDate}, nil
}

// rowID hashes the declared identity columns into a stable 16-character
// lowercase hex fingerprint. The key concatenates "{column}={value}"
// pairs in declared order; Value.String already normalizes dates to
// YYYY-MM-DD, so time-of-day or timezone noise never changes identity.
func (l *Loader) rowID(row Row) string {
	parts := make([]string, 0, len(l.schema.RowIDHashColumns))
	for _, col := range l.schema.RowIDHashColumns {
		parts = append(parts, col+"="+row.Value(col).String())
	}
	sum := xxh3.HashString128(strings.Join(parts, "|"))
	return fmt.Sprintf("%016x", sum.Hi)
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func sampleOf(i int, rec []string) RowSample {
	// +2: 1-based numbering plus the header line.
	return RowSample{Line: i + 2, Fields: strings.Join(rec, ",")}
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseQuarter(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f), true
	}
	if m := quarterPattern.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

func parseMonth(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f), true
	}
	if m := monthPattern.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

func dateBounds(dates []time.Time) (time.Time, time.Time) {
	if len(dates) == 0 {
		return time.Time{}, time.Time{}
	}
	minD, maxD := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(minD) {
			minD = d
		}
		if d.After(maxD) {
			maxD = d
		}
	}
	return minD, maxD
}
