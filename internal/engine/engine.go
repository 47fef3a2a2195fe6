// Package engine interprets a validated query plan against the
// normalized table.
//
// Execution is a direct, deterministic pipeline: time-range slice, then
// equality filters, then dispatch on intent. All aggregation is sum only.
// The engine never mutates the table it was given and never catches its
// own failures: a malformed plan is a hard, typed stop.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/tabq/internal/dataset"
	"github.com/leapstack-labs/tabq/internal/plan"
)

// defaultLastNYears applies when a last_n_years range leaves n unset.
const defaultLastNYears = 3

// Trend defaults, used only when the plan leaves the fields empty. Trend
// is the one intent with built-in defaulting beyond "use what the plan
// says": a trend without a time axis is meaningless.
var (
	trendGroupBy = []string{"year", "month"}
	trendMetrics = []string{plan.MetricRevenue, plan.MetricCost}
)

// Result pairs the aggregated result table with the provenance subset:
// the exact row-level slice (after time range and filters, before
// aggregation) the result was computed from. Both are read-only views;
// ownership transfers to the caller.
type Result struct {
	Table  *dataset.Table
	Subset *dataset.Table
}

// Engine executes plans against one normalized table.
type Engine struct {
	table  *dataset.Table
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over a table produced by the dataset loader. The
// engine only ever reads the table.
func New(table *dataset.Table, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteWithSubset runs the plan and returns both the aggregated result
// and the row subset it was computed from.
func (e *Engine) ExecuteWithSubset(p plan.Plan) (*Result, error) {
	subset, err := e.applyTimeRange(p.TimeRange)
	if err != nil {
		return nil, err
	}
	subset = applyFilters(subset, p.Filters)

	var res *dataset.Table
	switch p.Intent {
	case plan.IntentAggregate:
		res, err = runAggregate(subset, p)
	case plan.IntentTopN:
		res, err = runTopN(subset, p)
	case plan.IntentTrend:
		res, err = runTrend(subset, p)
	default:
		return nil, &UnsupportedIntentError{Intent: string(p.Intent)}
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("plan executed",
		"intent", p.Intent,
		"rows_total", e.table.Len(),
		"rows_used", subset.Len(),
		"rows_out", res.Len())

	return &Result{Table: res, Subset: subset}, nil
}

// Execute runs the plan and returns only the aggregated result.
func (e *Engine) Execute(p plan.Plan) (*dataset.Table, error) {
	res, err := e.ExecuteWithSubset(p)
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

func (e *Engine) applyTimeRange(tr plan.TimeRange) (*dataset.Table, error) {
	df := e.table
	switch tr.Type {
	case plan.RangeAll, "":
		return df, nil

	case plan.RangeYear:
		if tr.Year == nil {
			return nil, &MissingParameterError{Param: "time_range.year", Context: "required for type=year"}
		}
		year := *tr.Year
		return df.Filter(func(r dataset.Row) bool {
			return r.Value("year").Int() == year
		}), nil

	case plan.RangeQuarter:
		if tr.Year == nil || tr.Quarter == nil {
			return nil, &MissingParameterError{Param: "time_range.year/time_range.quarter", Context: "required for type=quarter"}
		}
		return sliceYearQuarter(df, *tr.Year, *tr.Quarter), nil

	case plan.RangeLastQuarter:
		return sliceLastQuarter(df), nil

	case plan.RangeLastNYears:
		n := defaultLastNYears
		if tr.NYears != nil {
			n = *tr.NYears
		}
		maxYear, ok := df.MaxInt("year")
		if !ok {
			return df, nil
		}
		// Inclusive range [maxYear-n+1, maxYear].
		start := maxYear - n + 1
		return df.Filter(func(r dataset.Row) bool {
			y := r.Value("year").Int()
			return y >= start && y <= maxYear
		}), nil

	default:
		return nil, &MissingParameterError{Param: "time_range.type", Context: fmt.Sprintf("unknown range type %q", tr.Type)}
	}
}

func sliceYearQuarter(df *dataset.Table, year, quarter int) *dataset.Table {
	return df.Filter(func(r dataset.Row) bool {
		return r.Value("year").Int() == year && r.Value("quarter").Int() == quarter
	})
}

// sliceLastQuarter resolves the most recent complete quarter: the
// maximum quarter within the maximum year present, rolled back by one,
// wrapping Q1 to the previous year's Q4.
func sliceLastQuarter(df *dataset.Table) *dataset.Table {
	maxYear, ok := df.MaxInt("year")
	if !ok {
		return df
	}
	inMaxYear := df.Filter(func(r dataset.Row) bool {
		return r.Value("year").Int() == maxYear
	})
	maxQ, ok := inMaxYear.MaxInt("quarter")
	if !ok {
		return inMaxYear
	}
	year, quarter := maxYear, maxQ-1
	if maxQ == 1 {
		year, quarter = maxYear-1, 4
	}
	return sliceYearQuarter(df, year, quarter)
}

// applyFilters narrows the subset with every equality constraint in plan
// order. Filters AND together.
func applyFilters(df *dataset.Table, filters []plan.Filter) *dataset.Table {
	for _, f := range filters {
		want := filterValue(f.Value)
		field := f.Field
		df = df.Filter(func(r dataset.Row) bool {
			return r.Value(field).Equal(want)
		})
	}
	return df
}

// filterValue lifts an externally supplied filter value into a cell.
// JSON numbers arrive as float64; everything else compares as a string.
func filterValue(v any) dataset.Value {
	switch x := v.(type) {
	case float64:
		return dataset.Number(x)
	case int:
		return dataset.Number(float64(x))
	case int64:
		return dataset.Number(float64(x))
	case string:
		return dataset.String(x)
	case nil:
		return dataset.Null
	default:
		return dataset.String(fmt.Sprint(x))
	}
}

func runAggregate(df *dataset.Table, p plan.Plan) (*dataset.Table, error) {
	if len(p.Metrics) == 0 {
		return nil, &MissingParameterError{Param: "metrics", Context: "aggregate requires at least one metric"}
	}
	if len(p.GroupBy) == 0 {
		return sumAll(df, p.Metrics), nil
	}
	return groupAndSum(df, p.GroupBy, p.Metrics), nil
}

func runTopN(df *dataset.Table, p plan.Plan) (*dataset.Table, error) {
	if len(p.GroupBy) == 0 {
		return nil, &MissingParameterError{Param: "groupby", Context: "ranking without a grouping dimension is meaningless"}
	}
	if p.TopN == nil || p.SortBy == nil {
		return nil, &MissingParameterError{Param: "top_n/sort_by", Context: "required for intent=top_n"}
	}
	metrics := p.Metrics
	if len(metrics) == 0 {
		metrics = []string{plan.MetricRevenue}
	}
	sortField := p.SortBy.Field
	if !contains(metrics, sortField) {
		return nil, &MissingParameterError{Param: "metrics", Context: fmt.Sprintf("sort_by field %q is not among the computed metrics", sortField)}
	}

	res := groupAndSum(df, p.GroupBy, metrics)
	sortRowsStable(res, []string{sortField}, p.SortBy.Ascending())
	return truncate(res, *p.TopN), nil
}

func runTrend(df *dataset.Table, p plan.Plan) (*dataset.Table, error) {
	groupBy := p.GroupBy
	if len(groupBy) == 0 {
		groupBy = trendGroupBy
	}
	metrics := p.Metrics
	if len(metrics) == 0 {
		metrics = trendMetrics
	}

	res := groupAndSum(df, groupBy, metrics)
	sortCols := groupBy
	if contains(groupBy, "year") && contains(groupBy, "month") {
		sortCols = []string{"year", "month"}
	}
	sortRowsStable(res, sortCols, true)
	return res, nil
}

// sumAll collapses the subset into a single row of metric sums. An empty
// subset sums to zero, not an error.
func sumAll(df *dataset.Table, metrics []string) *dataset.Table {
	out := dataset.NewTable(metrics)
	row := dataset.NewRow()
	for _, m := range metrics {
		row.Set(m, dataset.Number(df.SumColumn(m)))
	}
	out.Append(row)
	return out
}

// groupAndSum groups by the given dimensions and sums each metric per
// group, one output row per group in first-seen order. Grouping keys
// that are absent or null form their own group rather than being
// dropped.
func groupAndSum(df *dataset.Table, groupBy, metrics []string) *dataset.Table {
	type bucket struct {
		keys []dataset.Value
		sums []float64
	}

	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for i := 0; i < df.Len(); i++ {
		r := df.Row(i)
		keyParts := make([]string, len(groupBy))
		keys := make([]dataset.Value, len(groupBy))
		for j, col := range groupBy {
			keys[j] = r.Value(col)
			keyParts[j] = keys[j].String()
		}
		key := strings.Join(keyParts, "\x1f")

		b, ok := buckets[key]
		if !ok {
			b = &bucket{keys: keys, sums: make([]float64, len(metrics))}
			buckets[key] = b
			order = append(order, key)
		}
		for j, m := range metrics {
			b.sums[j] += r.Value(m).Float()
		}
	}

	out := dataset.NewTable(append(append([]string{}, groupBy...), metrics...))
	for _, key := range order {
		b := buckets[key]
		row := dataset.NewRow()
		for j, col := range groupBy {
			row.Set(col, b.keys[j])
		}
		for j, m := range metrics {
			row.Set(m, dataset.Number(b.sums[j]))
		}
		out.Append(row)
	}
	return out
}

// sortRowsStable orders a derived table by the given columns. The sort
// is stable, so ties keep the table's natural row order.
func sortRowsStable(df *dataset.Table, cols []string, ascending bool) {
	rows := make([]dataset.Row, df.Len())
	for i := range rows {
		rows[i] = df.Row(i)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for _, col := range cols {
			va, vb := rows[a].Value(col), rows[b].Value(col)
			if va.Equal(vb) {
				continue
			}
			if ascending {
				return va.Less(vb)
			}
			return vb.Less(va)
		}
		return false
	})

	sorted := dataset.NewTable(df.Columns())
	for _, r := range rows {
		sorted.Append(r)
	}
	*df = *sorted
}

func truncate(df *dataset.Table, n int) *dataset.Table {
	if df.Len() <= n {
		return df
	}
	out := dataset.NewTable(df.Columns())
	for i := 0; i < n; i++ {
		out.Append(df.Row(i))
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
