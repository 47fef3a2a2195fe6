// Package dataset loads and holds the normalized in-memory table the
// query engine runs against.
//
// The table is row-oriented and built once per process run by the Loader.
// After Load returns, the table is treated as read-only by every consumer;
// a fresh run replaces it wholesale. Because nothing mutates it, concurrent
// reads from multiple logical sessions are safe without locking.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the cell value variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDate
)

// Value is a single typed cell. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	date time.Time
}

// Null is the missing value.
var Null = Value{}

// Number builds a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String builds a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Date builds a date cell. Time-of-day and timezone are irrelevant to
// equality and display; only the calendar date is kept.
func Date(t time.Time) Value {
	return Value{kind: KindDate, date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Kind returns the value's variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value, or 0 for non-numbers.
func (v Value) Float() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// Int returns the numeric value truncated to an integer.
func (v Value) Int() int { return int(v.Float()) }

// Time returns the date value, or the zero time for non-dates.
func (v Value) Time() time.Time {
	if v.kind == KindDate {
		return v.date
	}
	return time.Time{}
}

// String renders the cell for display, grouping keys, and identity
// hashing. Dates normalize to YYYY-MM-DD; integral numbers drop the
// fractional part; nulls render empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindDate:
		return v.date.Format("2006-01-02")
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same logical value. A number
// and a numeric string compare equal when they parse to the same number,
// which keeps externally supplied filter values like "2023" usable
// against numeric columns.
func (v Value) Equal(o Value) bool {
	if v.kind == o.kind {
		switch v.kind {
		case KindNumber:
			return v.num == o.num
		case KindString:
			return v.str == o.str
		case KindDate:
			return v.date.Equal(o.date)
		default:
			return true
		}
	}
	if v.kind == KindNumber && o.kind == KindString {
		if f, err := strconv.ParseFloat(strings.TrimSpace(o.str), 64); err == nil {
			return v.num == f
		}
		return false
	}
	if v.kind == KindString && o.kind == KindNumber {
		return o.Equal(v)
	}
	return false
}

// Less imposes a total order within a kind: numbers numerically, strings
// lexicographically, dates chronologically. Nulls order first.
func (v Value) Less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindNumber:
		return v.num < o.num
	case KindString:
		return v.str < o.str
	case KindDate:
		return v.date.Before(o.date)
	default:
		return false
	}
}

// Row is one observation of the normalized table. ID is empty on rows of
// derived (aggregated) tables.
type Row struct {
	ID    string
	cells map[string]Value
}

// NewRow returns an empty row.
func NewRow() Row {
	return Row{cells: make(map[string]Value)}
}

// Set stores a cell.
func (r Row) Set(col string, v Value) { r.cells[col] = v }

// Value returns the cell for col, Null when absent.
func (r Row) Value(col string) Value { return r.cells[col] }

// Table is an ordered collection of rows with a declared column order.
// It backs both the normalized dataset and derived result tables.
type Table struct {
	columns []string
	rows    []Row
}

// NewTable creates an empty table with the given column order.
func NewTable(columns []string) *Table {
	return &Table{columns: append([]string(nil), columns...)}
}

// Columns returns the column order. Callers must not modify it.
func (t *Table) Columns() []string { return t.columns }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Append adds a row.
func (t *Table) Append(r Row) { t.rows = append(t.rows, r) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Filter returns a new table, sharing rows, holding only the rows for
// which keep returns true. Row order is preserved.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := NewTable(t.columns)
	for _, r := range t.rows {
		if keep(r) {
			out.Append(r)
		}
	}
	return out
}

// SumColumn sums a numeric column over all rows. Null cells contribute
// zero, so an empty table sums to zero rather than erroring.
func (t *Table) SumColumn(col string) float64 {
	var total float64
	for _, r := range t.rows {
		total += r.Value(col).Float()
	}
	return total
}

// MaxInt returns the maximum integral value of a numeric column and
// whether any non-null cell was seen.
func (t *Table) MaxInt(col string) (int, bool) {
	best, seen := 0, false
	for _, r := range t.rows {
		v := r.Value(col)
		if v.IsNull() {
			continue
		}
		if n := v.Int(); !seen || n > best {
			best, seen = n, true
		}
	}
	return best, seen
}
