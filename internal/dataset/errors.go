package dataset

import (
	"fmt"
	"strings"
)

// Load failures are deterministic and descriptive: a bad source file means
// the process cannot proceed, so every error below aborts the whole load
// with no partial table. Samples of offending rows are bounded to keep
// messages readable.

// SchemaError reports required raw columns missing from the source.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source is missing expected columns: %s", strings.Join(e.Missing, ", "))
}

// RowSample is one offending row carried inside a TypeCoercionError.
type RowSample struct {
	Line   int // 1-based line in the source, header included
	Fields string
}

func (s RowSample) String() string {
	return fmt.Sprintf("line %d: %s", s.Line, s.Fields)
}

// TypeCoercionError reports values that fail to parse or fall outside
// their valid range after all fallbacks. Sample holds at most the first
// few offending rows.
type TypeCoercionError struct {
	Column string
	Reason string
	Sample []RowSample
}

func (e *TypeCoercionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column %q: %s", e.Column, e.Reason)
	for _, s := range e.Sample {
		b.WriteString("\n  ")
		b.WriteString(s.String())
	}
	return b.String()
}
