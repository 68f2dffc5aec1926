package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdata/backend/internal/storage/models"
)

func groupedResult(pairs ...any) *models.ResultSet {
	rs := &models.ResultSet{Columns: []string{"group_col", "value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		rs.Rows = append(rs.Rows, []any{pairs[i], pairs[i+1]})
	}
	return rs
}

func TestGenerateEmptyResult(t *testing.T) {
	r := Generate(&models.ResultSet{}, "SELECT 1", "anything")

	assert.Equal(t, "table", r.SuggestedChart)
	assert.Equal(t, []string{"Query returned no results."}, r.Insights)
}

func TestGenerateScalarKPI(t *testing.T) {
	rs := &models.ResultSet{Columns: []string{"value"}, Rows: [][]any{{float64(42.126)}}}

	r := Generate(rs, "SELECT AVG(salary) AS value FROM data", "average salary")

	assert.Equal(t, "kpi", r.SuggestedChart)
	require.Len(t, r.Insights, 1)
	assert.Equal(t, "Value: 42.13", r.Insights[0])

	details, ok := r.Details.(ScalarSummary)
	require.True(t, ok)
	assert.Equal(t, "value", details.ValueColumn)
}

func TestGenerateGroupedRanking(t *testing.T) {
	rs := groupedResult(
		"Sales", int64(120),
		"HR", int64(40),
		"Engineering", int64(200),
		"Support", int64(60),
	)

	r := Generate(rs, "SELECT ...", "total by department")

	assert.Equal(t, "bar", r.SuggestedChart)

	details, ok := r.Details.(GroupedSummary)
	require.True(t, ok)
	assert.Equal(t, "group_col", details.GroupColumn)

	require.Len(t, details.Top, 3)
	assert.Equal(t, GroupValue{Group: "Engineering", Value: 200}, details.Top[0])
	assert.Equal(t, GroupValue{Group: "Sales", Value: 120}, details.Top[1])

	// bottom is ascending
	require.Len(t, details.Bottom, 3)
	assert.Equal(t, GroupValue{Group: "HR", Value: 40}, details.Bottom[0])
	assert.Equal(t, GroupValue{Group: "Support", Value: 60}, details.Bottom[1])

	assert.InDelta(t, 105.0, details.Mean, 0.001)
	// median of 40,60,120,200 is 90; (200-90)/90 = 122.2%
	require.NotNil(t, details.TopVsMedianPercent)
	assert.InDelta(t, 122.22, *details.TopVsMedianPercent, 0.01)
}

func TestGenerateGroupedBullets(t *testing.T) {
	rs := groupedResult("A", int64(10), "B", int64(20))

	r := Generate(rs, "SELECT ...", "q")

	require.NotEmpty(t, r.Insights)
	assert.Equal(t, "Top groups: B (20), A (10).", r.Insights[0])
	assert.Contains(t, r.Insights, "Average value across groups: 15.")
}

func TestGenerateOutlierDetection(t *testing.T) {
	rs := groupedResult(
		"a", 10.0, "b", 11.0, "c", 9.0, "d", 10.5,
		"e", 9.5, "f", 10.2, "g", 9.8, "h", 100.0,
	)

	r := Generate(rs, "SELECT ...", "q")

	details, ok := r.Details.(GroupedSummary)
	require.True(t, ok)
	assert.Equal(t, 1, details.AnomalyCount)
	assert.Contains(t, r.Insights, "Detected 1 outlier groups.")
}

func TestGenerateNoOutliersWhenUniform(t *testing.T) {
	rs := groupedResult("a", 5.0, "b", 5.0, "c", 5.0)

	r := Generate(rs, "SELECT ...", "q")

	details := r.Details.(GroupedSummary)
	assert.Zero(t, details.AnomalyCount)
	// median equals max, so no top-vs-median bullet either
	require.NotNil(t, details.TopVsMedianPercent)
	assert.Zero(t, *details.TopVsMedianPercent)
}

func TestGenerateTemporalFirstColumnSuggestsLine(t *testing.T) {
	rs := groupedResult(
		"2024-01-01", int64(10),
		"2024-02-01", int64(12),
		"2024-03-01", int64(9),
	)

	r := Generate(rs, "SELECT ...", "sales over time")

	assert.Equal(t, "line", r.SuggestedChart)
}

func TestGenerateNonNumericSecondColumnFallsBackToTable(t *testing.T) {
	rs := &models.ResultSet{
		Columns: []string{"name", "city"},
		Rows:    [][]any{{"Ana", "Lisbon"}, {"Bo", "Oslo"}},
	}

	r := Generate(rs, "SELECT ...", "q")

	assert.Equal(t, "table", r.SuggestedChart)
	details, ok := r.Details.(TableSummary)
	require.True(t, ok)
	assert.Equal(t, 2, details.RowCount)
	assert.Equal(t, []string{"name", "city"}, details.Columns)
}

func TestGenerateStringNumbersAreCoerced(t *testing.T) {
	rs := groupedResult("A", "12.5", "B", "7")

	r := Generate(rs, "SELECT ...", "q")

	details, ok := r.Details.(GroupedSummary)
	require.True(t, ok)
	assert.Equal(t, 12.5, details.Top[0].Value)
	assert.Equal(t, "bar", r.SuggestedChart)
}
