package sqlgen

import (
	"fmt"
	"strings"

	"github.com/askdata/backend/internal/intent"
	"github.com/askdata/backend/internal/schema"
)

// previewWords short-circuit the fallback into a plain preview query.
var previewWords = []string{"sample", "preview", "show data", "show me", "display", "first rows", "head"}

// Build renders an intent into a single SELECT against table. Pure and
// total: column names come from the schema-matched intent, never from raw
// question text.
func Build(in intent.Intent, table string) string {
	metricExpr := fmt.Sprintf("%s(*)", in.Aggregation)
	if in.Metric != "" {
		metricExpr = fmt.Sprintf("%s(%s)", in.Aggregation, in.Metric)
	}

	if in.GroupBy != "" {
		return fmt.Sprintf(
			"SELECT %s AS group_col, %s AS value FROM %s GROUP BY %s ORDER BY value DESC",
			in.GroupBy, metricExpr, table, in.GroupBy,
		)
	}
	return fmt.Sprintf("SELECT %s AS value FROM %s", metricExpr, table)
}

// FallbackSQL is the deterministic query path: preview phrasings get a raw
// sample, a bare "count" gets a row count, everything else goes through
// intent extraction and Build.
func FallbackSQL(question string, class schema.Classification, table string) string {
	q := strings.ToLower(question)

	for _, w := range previewWords {
		if strings.Contains(q, w) {
			return fmt.Sprintf("SELECT * FROM %s LIMIT 50", table)
		}
	}
	if strings.Contains(q, "count") && !strings.Contains(q, "by") {
		return fmt.Sprintf("SELECT COUNT(*) AS value FROM %s", table)
	}

	return Build(intent.Extract(question, class), table)
}
