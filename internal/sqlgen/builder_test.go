package sqlgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askdata/backend/internal/intent"
	"github.com/askdata/backend/internal/schema"
)

func TestBuildGroupedQuery(t *testing.T) {
	got := Build(intent.Intent{
		Metric:      "salary",
		Aggregation: intent.AggAvg,
		GroupBy:     "department",
	}, "data")

	assert.Equal(t,
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC",
		got)
}

func TestBuildUngroupedQuery(t *testing.T) {
	got := Build(intent.Intent{
		Metric:      "salary",
		Aggregation: intent.AggSum,
	}, "data")

	assert.Equal(t, "SELECT SUM(salary) AS value FROM data", got)
}

func TestBuildCountStarWithoutMetric(t *testing.T) {
	got := Build(intent.Intent{Aggregation: intent.AggCount}, "data")
	assert.Equal(t, "SELECT COUNT(*) AS value FROM data", got)

	grouped := Build(intent.Intent{Aggregation: intent.AggCount, GroupBy: "role"}, "data")
	assert.Equal(t,
		"SELECT role AS group_col, COUNT(*) AS value FROM data GROUP BY role ORDER BY value DESC",
		grouped)
}

func TestBuildAlwaysSelectAndGroupByIffGrouped(t *testing.T) {
	cases := []intent.Intent{
		{Aggregation: intent.AggCount},
		{Metric: "salary", Aggregation: intent.AggAvg},
		{Metric: "salary", Aggregation: intent.AggMax, GroupBy: "department"},
		{Aggregation: intent.AggMin, GroupBy: "role"},
	}
	for _, in := range cases {
		got := Build(in, "data")
		assert.True(t, strings.HasPrefix(got, "SELECT "), got)
		assert.Equal(t, in.GroupBy != "", strings.Contains(got, "GROUP BY"), got)
	}
}

func TestFallbackSQLPreviewShortcut(t *testing.T) {
	class := schema.Classification{
		Numeric:     []string{"salary"},
		Categorical: []string{"department"},
	}

	for _, q := range []string{
		"show me a sample of the data",
		"preview the dataset",
		"display first rows",
	} {
		assert.Equal(t, "SELECT * FROM data LIMIT 50", FallbackSQL(q, class, "data"), "question %q", q)
	}
}

func TestFallbackSQLBareCountShortcut(t *testing.T) {
	class := schema.Classification{Numeric: []string{"salary"}}

	got := FallbackSQL("count the rows", class, "data")
	assert.Equal(t, "SELECT COUNT(*) AS value FROM data", got)

	// "count ... by ..." goes through intent extraction instead
	grouped := FallbackSQL("count salary by department", schema.Classification{
		Numeric:     []string{"salary"},
		Categorical: []string{"department"},
	}, "data")
	assert.Contains(t, grouped, "GROUP BY department")
}

func TestFallbackSQLScenario(t *testing.T) {
	class := schema.Classification{
		Numeric:     []string{"salary", "age"},
		Categorical: []string{"department", "role"},
	}

	got := FallbackSQL("average salary by department", class, "data")
	assert.Equal(t,
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC",
		got)
}
