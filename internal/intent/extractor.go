package intent

import (
	"strings"

	"github.com/askdata/backend/internal/schema"
)

type Aggregation string

const (
	AggAvg   Aggregation = "AVG"
	AggSum   Aggregation = "SUM"
	AggCount Aggregation = "COUNT"
	AggMax   Aggregation = "MAX"
	AggMin   Aggregation = "MIN"
)

// Intent is the extractor's best guess at what a question asks for. Metric
// and GroupBy are empty when no column applies (count rows, no grouping).
type Intent struct {
	Metric      string
	Aggregation Aggregation
	GroupBy     string
}

// aggKeywords is scanned in order; the first kind with a matching keyword
// wins.
var aggKeywords = []struct {
	agg   Aggregation
	words []string
}{
	{AggAvg, []string{"average", "avg", "mean"}},
	{AggSum, []string{"sum", "total"}},
	{AggCount, []string{"count", "number of", "how many"}},
	{AggMax, []string{"max", "highest", "largest"}},
	{AggMin, []string{"min", "lowest", "smallest"}},
}

// Extract guesses metric, aggregation and grouping for a question. It is a
// lexical heuristic: false matches are expected, and the caller treats the
// result as a plausible fallback rather than an interpretation.
func Extract(question string, class schema.Classification) Intent {
	q := strings.ToLower(question)

	return Intent{
		Aggregation: detectAggregation(q),
		Metric:      detectMetric(q, class.Numeric),
		GroupBy:     detectGroupBy(q, class.Categorical),
	}
}

func detectAggregation(q string) Aggregation {
	for _, entry := range aggKeywords {
		for _, word := range entry.words {
			if strings.Contains(q, word) {
				return entry.agg
			}
		}
	}
	return AggCount
}

func detectMetric(q string, numeric []string) string {
	if len(numeric) == 0 {
		return ""
	}

	ranked := RankColumns(q, numeric)
	if ranked[0].Score > 0 {
		return ranked[0].Name
	}
	// nothing scored at all; guess the first numeric column
	return numeric[0]
}

func detectGroupBy(q string, categorical []string) string {
	if len(categorical) == 0 {
		return ""
	}

	if idx := strings.Index(q, " by "); idx != -1 {
		afterBy := strings.TrimSpace(q[idx+len(" by "):])
		if afterBy != "" {
			for _, col := range categorical {
				if strings.Contains(strings.ToLower(col), afterBy) {
					return col
				}
			}
		}
	}

	ranked := RankColumns(q, categorical)
	if ranked[0].Score > 0 {
		return ranked[0].Name
	}
	return ""
}
