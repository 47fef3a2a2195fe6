// Package plan defines the structured, validated representation of one
// analytical request.
//
// A Plan is produced outside this module (by whatever turns free text
// into structure) and consumed by the query engine. It is a closed,
// self-describing value: validation happens once at this boundary, and
// the engine performs no inference beyond its documented defaults.
// Anything outside the enumerated literals is rejected here rather than
// silently coerced.
package plan

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/tabq/internal/schema"
)

// Intent is the shape of computation requested.
type Intent string

const (
	IntentAggregate Intent = "aggregate"
	IntentTopN      Intent = "top_n"
	IntentTrend     Intent = "trend"
	IntentUnknown   Intent = "unknown"
)

var intents = []Intent{IntentAggregate, IntentTopN, IntentTrend, IntentUnknown}

// Metrics the engine can sum.
const (
	MetricRevenue = "revenue"
	MetricCost    = "cost"
	MetricProfit  = "profit"
)

var metrics = []string{MetricRevenue, MetricCost, MetricProfit}

// TimeRangeType selects the temporal slicing rule.
type TimeRangeType string

const (
	RangeAll         TimeRangeType = "all"
	RangeYear        TimeRangeType = "year"
	RangeQuarter     TimeRangeType = "quarter"
	RangeLastQuarter TimeRangeType = "last_quarter"
	RangeLastNYears  TimeRangeType = "last_n_years"
)

var rangeTypes = []TimeRangeType{RangeAll, RangeYear, RangeQuarter, RangeLastQuarter, RangeLastNYears}

// TimeRange restricts the dataset to a time slice before filtering and
// aggregation. Which parameters are required depends on Type; the engine
// checks intent-specific presence, this package checks legality.
type TimeRange struct {
	Type    TimeRangeType `json:"type" yaml:"type"`
	Year    *int          `json:"year,omitempty" yaml:"year,omitempty"`
	Quarter *int          `json:"quarter,omitempty" yaml:"quarter,omitempty"`
	NYears  *int          `json:"n_years,omitempty" yaml:"n_years,omitempty"`
}

// Filter is a single equality constraint over a dimension column. Only
// equality is supported.
type Filter struct {
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty"`
	Value any    `json:"value" yaml:"value"`
}

// SortBy orders a ranked result by a metric.
type SortBy struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Ascending reports whether ascending order was requested. Descending is
// the default.
func (s SortBy) Ascending() bool { return s.Direction == "asc" }

// Plan is the structured request executed by the query engine.
type Plan struct {
	Intent    Intent    `json:"intent" yaml:"intent"`
	Metrics   []string  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	GroupBy   []string  `json:"groupby,omitempty" yaml:"groupby,omitempty"`
	TimeRange TimeRange `json:"time_range" yaml:"time_range"`
	Filters   []Filter  `json:"filters,omitempty" yaml:"filters,omitempty"`
	TopN      *int      `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	SortBy    *SortBy   `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`
}

// ValidationError reports a plan field outside its declared literal or
// type constraints. It is raised at the construction boundary, before the
// plan ever reaches the engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Reason)
}

// Validate checks every enumerated field against reg's legal dimensions.
// A nil error means the plan is structurally sound; intent-specific
// parameter presence (top_n without sort_by and so on) is the engine's
// concern because it depends on dispatch.
func (p *Plan) Validate(reg *schema.Registry) error {
	if !slices.Contains(intents, p.Intent) {
		return &ValidationError{Field: "intent", Reason: fmt.Sprintf("%q is not one of aggregate, top_n, trend, unknown", p.Intent)}
	}
	for _, m := range p.Metrics {
		if !slices.Contains(metrics, m) {
			return &ValidationError{Field: "metrics", Reason: fmt.Sprintf("%q is not a known metric", m)}
		}
	}
	for _, g := range p.GroupBy {
		if !reg.IsDimension(g) {
			return &ValidationError{Field: "groupby", Reason: fmt.Sprintf("%q is not a legal dimension", g)}
		}
	}
	if !slices.Contains(rangeTypes, p.TimeRange.Type) {
		return &ValidationError{Field: "time_range.type", Reason: fmt.Sprintf("%q is not a known range type", p.TimeRange.Type)}
	}
	if p.TimeRange.Quarter != nil && (*p.TimeRange.Quarter < 1 || *p.TimeRange.Quarter > 4) {
		return &ValidationError{Field: "time_range.quarter", Reason: "must be in [1,4]"}
	}
	for i, f := range p.Filters {
		if !reg.IsDimension(f.Field) {
			return &ValidationError{Field: fmt.Sprintf("filters[%d].field", i), Reason: fmt.Sprintf("%q is not a legal dimension", f.Field)}
		}
		if f.Op != "" && f.Op != "=" {
			return &ValidationError{Field: fmt.Sprintf("filters[%d].op", i), Reason: "only equality is supported"}
		}
	}
	if p.SortBy != nil {
		if !slices.Contains(metrics, p.SortBy.Field) {
			return &ValidationError{Field: "sort_by.field", Reason: fmt.Sprintf("%q is not a known metric", p.SortBy.Field)}
		}
		if d := p.SortBy.Direction; d != "" && d != "asc" && d != "desc" {
			return &ValidationError{Field: "sort_by.direction", Reason: "must be asc or desc"}
		}
	}
	if p.TopN != nil && *p.TopN < 1 {
		return &ValidationError{Field: "top_n", Reason: "must be at least 1"}
	}
	return nil
}

// Decode parses a JSON plan and validates it against reg. Structurally
// invalid plans are a hard failure; there is no partial recovery.
func Decode(data []byte, reg *schema.Registry) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, &ValidationError{Field: "plan", Reason: err.Error()}
	}
	if p.TimeRange.Type == "" {
		p.TimeRange.Type = RangeAll
	}
	if err := p.Validate(reg); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// DecodeYAML parses a YAML plan and validates it against reg.
func DecodeYAML(data []byte, reg *schema.Registry) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, &ValidationError{Field: "plan", Reason: err.Error()}
	}
	if p.TimeRange.Type == "" {
		p.TimeRange.Type = RangeAll
	}
	if err := p.Validate(reg); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// JSON renders the plan as indented JSON, mostly for session history and
// diagnostics.
func (p Plan) JSON() string {
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
