package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null renders empty", Null, ""},
		{"integral number drops fraction", Number(42), "42"},
		{"negative integral", Number(-7), "-7"},
		{"fractional number keeps fraction", Number(12.5), "12.5"},
		{"string passes through", String("Sweden"), "Sweden"},
		{
			"date normalizes to calendar day",
			Date(time.Date(2023, 7, 4, 13, 45, 0, 0, time.FixedZone("X", 3600))),
			"2023-07-04",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValue_Equal(t *testing.T) {
	d := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers equal", Number(3), Number(3), true},
		{"numbers unequal", Number(3), Number(4), false},
		{"strings equal", String("TV"), String("TV"), true},
		{"strings case sensitive", String("TV"), String("tv"), false},
		{"dates equal regardless of time", Date(d), Date(d.Add(5 * time.Hour)), true},
		{"nulls equal", Null, Null, true},
		{"null vs number", Null, Number(0), false},
		{"number vs numeric string", Number(2023), String("2023"), true},
		{"numeric string vs number", String("12.5"), Number(12.5), true},
		{"number vs non-numeric string", Number(2023), String("year"), false},
		{"date vs string never equal", Date(d), String("2023-01-15"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValue_Less(t *testing.T) {
	assert.True(t, Number(1).Less(Number(2)))
	assert.False(t, Number(2).Less(Number(1)))
	assert.True(t, String("a").Less(String("b")))
	assert.True(t, Date(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)).
		Less(Date(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))))

	// Nulls order before everything.
	assert.True(t, Null.Less(Number(-1e9)))
	assert.False(t, Number(0).Less(Null))
}

func TestValue_Accessors(t *testing.T) {
	assert.Equal(t, 12.5, Number(12.5).Float())
	assert.Equal(t, 12, Number(12.5).Int())
	assert.Equal(t, 0.0, String("12.5").Float())
	assert.True(t, Null.IsNull())
	assert.False(t, Number(0).IsNull())

	d := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, d, Date(d).Time())
	assert.True(t, String("x").Time().IsZero())
}

func TestRow_MissingCellIsNull(t *testing.T) {
	r := NewRow()
	r.Set("country", String("Norway"))

	assert.Equal(t, "Norway", r.Value("country").String())
	assert.True(t, r.Value("revenue").IsNull())
}

func TestTable_FilterPreservesOrder(t *testing.T) {
	tbl := NewTable([]string{"n"})
	for i := 0; i < 6; i++ {
		r := NewRow()
		r.Set("n", Number(float64(i)))
		tbl.Append(r)
	}

	even := tbl.Filter(func(r Row) bool { return r.Value("n").Int()%2 == 0 })
	require.Equal(t, 3, even.Len())
	assert.Equal(t, 0, even.Row(0).Value("n").Int())
	assert.Equal(t, 2, even.Row(1).Value("n").Int())
	assert.Equal(t, 4, even.Row(2).Value("n").Int())

	// The source table is untouched.
	assert.Equal(t, 6, tbl.Len())
}

func TestTable_SumColumn(t *testing.T) {
	tbl := NewTable([]string{"revenue"})
	for _, f := range []float64{100, 250.5, 49.5} {
		r := NewRow()
		r.Set("revenue", Number(f))
		tbl.Append(r)
	}
	// Null cells contribute zero.
	tbl.Append(NewRow())

	assert.InDelta(t, 400.0, tbl.SumColumn("revenue"), 1e-9)
	assert.Equal(t, 0.0, NewTable([]string{"revenue"}).SumColumn("revenue"))
}

func TestTable_MaxInt(t *testing.T) {
	tbl := NewTable([]string{"year"})
	for _, y := range []float64{2021, 2023, 2022} {
		r := NewRow()
		r.Set("year", Number(y))
		tbl.Append(r)
	}

	maxYear, ok := tbl.MaxInt("year")
	require.True(t, ok)
	assert.Equal(t, 2023, maxYear)

	_, ok = NewTable([]string{"year"}).MaxInt("year")
	assert.False(t, ok)
}
