package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPartitionsEveryColumn(t *testing.T) {
	cols := []Column{
		{Name: "salary", StorageType: "REAL", Values: []string{"100.5", "90"}},
		{Name: "age", StorageType: "INTEGER", Values: []string{"30", "41"}},
		{Name: "department", StorageType: "TEXT", Values: []string{"sales", "hr"}},
		{Name: "hired_on", StorageType: "TEXT", Values: []string{"2021-04-01", "2022-11-30", "2020-01-15"}},
	}

	got := Classify(cols)

	assert.Equal(t, []string{"salary", "age"}, got.Numeric)
	assert.Equal(t, []string{"department"}, got.Categorical)
	assert.Equal(t, []string{"hired_on"}, got.Temporal)

	// pairwise disjoint and the union covers the input
	seen := map[string]int{}
	for _, name := range got.AllColumns() {
		seen[name]++
	}
	require.Len(t, seen, len(cols))
	for _, col := range cols {
		assert.Equal(t, 1, seen[col.Name], "column %s must appear exactly once", col.Name)
	}
}

func TestClassifyNumericStorageNeverTemporal(t *testing.T) {
	// values that would date-parse, but the storage type wins
	cols := []Column{
		{Name: "ts_epoch", StorageType: "INTEGER", Values: []string{"2006-01-02", "2007-01-02"}},
	}
	got := Classify(cols)
	assert.Equal(t, []string{"ts_epoch"}, got.Numeric)
	assert.Empty(t, got.Temporal)
}

func TestLooksTemporalThreshold(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   bool
	}{
		{
			name:   "all dates",
			values: []string{"2021-01-01", "2021-02-01", "2021-03-01"},
			want:   true,
		},
		{
			name:   "exactly 70 percent",
			values: []string{"2021-01-01", "2021-02-01", "2021-03-01", "2021-04-01", "2021-05-01", "2021-06-01", "2021-07-01", "oops", "oops", "oops"},
			want:   true,
		},
		{
			name:   "below threshold",
			values: []string{"2021-01-01", "oops", "oops"},
			want:   false,
		},
		{
			name:   "free text",
			values: []string{"alpha", "beta", "gamma"},
			want:   false,
		},
		{
			name:   "empty column",
			values: nil,
			want:   false,
		},
		{
			name:   "mixed layouts",
			values: []string{"01/02/2020", "Jan 3, 2021", "2022-05-06T10:00:00"},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksTemporal(tt.values))
		})
	}
}

func TestClassifyLargeDatasetStaysDisjoint(t *testing.T) {
	var cols []Column
	for i := 0; i < 50; i++ {
		cols = append(cols,
			Column{Name: fmt.Sprintf("n%d", i), StorageType: "REAL", Values: []string{"1"}},
			Column{Name: fmt.Sprintf("c%d", i), StorageType: "TEXT", Values: []string{"x"}},
		)
	}
	got := Classify(cols)
	assert.Len(t, got.AllColumns(), len(cols))
	assert.Len(t, got.Numeric, 50)
	assert.Len(t, got.Categorical, 50)
}
