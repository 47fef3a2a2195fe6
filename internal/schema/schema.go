// Package schema declares dataset schemas as data.
//
// A Registry describes the raw column set of a tabular source, how those
// columns are renamed into canonical snake_case form, which canonical
// columns are numeric or dates, which columns are legal grouping and
// filtering targets, and which columns participate in row identity
// hashing. The loader and the query engine are written entirely against a
// Registry, so supporting another dataset means building another Registry
// instance, not touching loader or engine code.
package schema

import (
	"fmt"
	"slices"
)

// Derived metric names. These are computed by the loader and must never
// appear in RowIDHashColumns: row identity depends only on source-of-truth
// fields.
const (
	ColProfit = "profit"
	ColRowID  = "row_id"
)

// Registry is an immutable description of one dataset. Build it once and
// share it; nothing in this package or its consumers mutates it.
type Registry struct {
	// RawColumns are the column headers required in the source, in order.
	// Extra source columns are ignored; missing ones are fatal.
	RawColumns []string

	// RenameMap maps each raw column name to its canonical snake_case
	// name. It must be bijective on RawColumns.
	RenameMap map[string]string

	// NumericColumns are canonical columns coerced to numbers.
	NumericColumns []string

	// DateColumn is the canonical column parsed as a calendar date.
	DateColumn string

	// Dimensions are canonical columns legal as groupby/filter targets.
	Dimensions []string

	// RowIDHashColumns are the canonical columns whose values, in this
	// order, form the identity of a row.
	RowIDHashColumns []string
}

// MarketingDefault returns the registry for the marketing campaign
// dataset this tool ships against.
func MarketingDefault() *Registry {
	return &Registry{
		RawColumns: []string{
			"Year", "Quarter", "Month", "Week", "Date", "Country",
			"Media Category", "Media Name", "Communication",
			"Campaign Category", "Product", "Campaign Name", "Revenue", "Cost",
		},
		RenameMap: map[string]string{
			"Year":              "year",
			"Quarter":           "quarter",
			"Month":             "month",
			"Week":              "week",
			"Date":              "date",
			"Country":           "country",
			"Media Category":    "media_category",
			"Media Name":        "media_name",
			"Communication":     "communication",
			"Campaign Category": "campaign_category",
			"Product":           "product",
			"Campaign Name":     "campaign_name",
			"Revenue":           "revenue",
			"Cost":              "cost",
		},
		NumericColumns: []string{"year", "quarter", "month", "week", "revenue", "cost"},
		DateColumn:     "date",
		Dimensions: []string{
			"year", "quarter", "month", "week",
			"country", "media_category", "media_name",
			"communication", "campaign_category",
			"product", "campaign_name",
		},
		RowIDHashColumns: []string{
			"year", "quarter", "month", "week", "date",
			"country", "media_category", "media_name",
			"communication", "campaign_category", "product", "campaign_name",
			"revenue", "cost",
		},
	}
}

// CanonicalColumns returns the canonical names of RawColumns, in raw order.
func (r *Registry) CanonicalColumns() []string {
	cols := make([]string, 0, len(r.RawColumns))
	for _, raw := range r.RawColumns {
		if canon, ok := r.RenameMap[raw]; ok {
			cols = append(cols, canon)
		} else {
			cols = append(cols, raw)
		}
	}
	return cols
}

// IsDimension reports whether name is a legal grouping/filtering target.
func (r *Registry) IsDimension(name string) bool {
	return slices.Contains(r.Dimensions, name)
}

// IsNumeric reports whether the canonical column is declared numeric.
func (r *Registry) IsNumeric(name string) bool {
	return slices.Contains(r.NumericColumns, name)
}

// Validate checks the registry's structural invariants. It is cheap and
// deterministic; loaders call it once before touching any data.
func (r *Registry) Validate() error {
	if len(r.RawColumns) == 0 {
		return fmt.Errorf("schema: no raw columns declared")
	}
	if r.DateColumn == "" {
		return fmt.Errorf("schema: date column is required")
	}

	seen := make(map[string]string, len(r.RenameMap))
	for raw, canon := range r.RenameMap {
		if prev, dup := seen[canon]; dup {
			return fmt.Errorf("schema: rename map is not bijective: %q and %q both map to %q", prev, raw, canon)
		}
		seen[canon] = raw
	}

	canonical := r.CanonicalColumns()
	for _, col := range r.RowIDHashColumns {
		if col == ColProfit || col == ColRowID {
			return fmt.Errorf("schema: row id hash column %q is derived, identity must depend on source fields only", col)
		}
		if !slices.Contains(canonical, col) && col != r.DateColumn {
			return fmt.Errorf("schema: row id hash column %q is not a declared column", col)
		}
	}
	return nil
}
