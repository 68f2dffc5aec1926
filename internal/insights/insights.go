package insights

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/askdata/backend/internal/schema"
	"github.com/askdata/backend/internal/storage/models"
)

// Report is the deterministic analysis of one query result. Insights are
// computed facts, never generated text, so they are safe to show verbatim
// and to feed the explanation prompt.
type Report struct {
	Question       string   `json:"question"`
	GeneratedSQL   string   `json:"generated_sql"`
	Insights       []string `json:"insights"`
	SuggestedChart string   `json:"suggested_chart"`
	Details        any      `json:"details,omitempty"`
}

type ScalarSummary struct {
	ValueColumn string `json:"value_column"`
	Value       any    `json:"value"`
}

type GroupValue struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
}

type GroupedSummary struct {
	GroupColumn        string       `json:"group_column"`
	ValueColumn        string       `json:"value_column"`
	Top                []GroupValue `json:"top"`
	Bottom             []GroupValue `json:"bottom"`
	Mean               float64      `json:"mean"`
	TopVsMedianPercent *float64     `json:"percent_difference_top_vs_median"`
	AnomalyCount       int          `json:"anomaly_count"`
}

type TableSummary struct {
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

const topN = 3

// Generate analyses a result set. Single-column results become a KPI,
// two-column group/value results get ranked-group analysis, everything
// else falls back to a table description.
func Generate(rs *models.ResultSet, sqlText, question string) Report {
	out := Report{Question: question, GeneratedSQL: sqlText}

	if rs == nil || rs.Empty() {
		out.SuggestedChart = "table"
		out.Insights = []string{"Query returned no results."}
		return out
	}

	if len(rs.Columns) == 1 {
		summary := summarizeScalar(rs)
		out.SuggestedChart = "kpi"
		out.Insights = []string{fmt.Sprintf("Value: %v", summary.Value)}
		out.Details = summary
		return out
	}

	if summary, ok := summarizeGrouped(rs); ok {
		out.SuggestedChart = suggestChart(rs)
		out.Insights = bullets(summary)
		out.Details = summary
		return out
	}

	out.SuggestedChart = "table"
	out.Insights = []string{"Returned a table. Inspect columns for detailed analysis."}
	out.Details = TableSummary{Columns: rs.Columns, RowCount: len(rs.Rows)}
	return out
}

func summarizeScalar(rs *models.ResultSet) ScalarSummary {
	raw := rs.Rows[0][0]
	if f, ok := toFloat(raw); ok {
		return ScalarSummary{ValueColumn: rs.Columns[0], Value: round2(f)}
	}
	return ScalarSummary{ValueColumn: rs.Columns[0], Value: raw}
}

// summarizeGrouped works on the first two columns: group label and metric.
// Rows whose metric cannot be read as a number are dropped.
func summarizeGrouped(rs *models.ResultSet) (GroupedSummary, bool) {
	groups := make([]GroupValue, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) < 2 {
			continue
		}
		v, ok := toFloat(row[1])
		if !ok {
			continue
		}
		groups = append(groups, GroupValue{Group: fmt.Sprintf("%v", row[0]), Value: v})
	}
	if len(groups) == 0 {
		return GroupedSummary{}, false
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })

	top := make([]GroupValue, 0, topN)
	for i := 0; i < len(groups) && i < topN; i++ {
		top = append(top, groups[i])
	}

	bottom := make([]GroupValue, 0, topN)
	start := len(groups) - topN
	if start < 0 {
		start = 0
	}
	for i := len(groups) - 1; i >= start; i-- {
		bottom = append(bottom, groups[i])
	}

	values := make([]float64, len(groups))
	var sum float64
	for i, g := range groups {
		values[i] = g.Value
		sum += g.Value
	}
	mean := sum / float64(len(values))
	med := median(values)
	maxVal := groups[0].Value

	var pctDiff *float64
	if med != 0 {
		d := (maxVal - med) / math.Abs(med) * 100
		pctDiff = &d
	}

	std := populationStd(values, mean)
	anomalies := 0
	if std > 0 {
		for _, v := range values {
			if math.Abs((v-mean)/std) > 2 {
				anomalies++
			}
		}
	}

	return GroupedSummary{
		GroupColumn:        rs.Columns[0],
		ValueColumn:        rs.Columns[1],
		Top:                top,
		Bottom:             bottom,
		Mean:               mean,
		TopVsMedianPercent: pctDiff,
		AnomalyCount:       anomalies,
	}, true
}

func bullets(s GroupedSummary) []string {
	var out []string

	if len(s.Top) > 0 {
		out = append(out, fmt.Sprintf("Top groups: %s.", joinGroups(s.Top)))
	}
	if len(s.Bottom) > 0 {
		out = append(out, fmt.Sprintf("Lowest groups: %s.", joinGroups(s.Bottom)))
	}
	out = append(out, fmt.Sprintf("Average value across groups: %s.", formatNumber(round2(s.Mean))))
	if s.TopVsMedianPercent != nil {
		out = append(out, fmt.Sprintf("Top group is %s%% above the median.", formatNumber(round1(*s.TopVsMedianPercent))))
	}
	if s.AnomalyCount > 0 {
		out = append(out, fmt.Sprintf("Detected %d outlier groups.", s.AnomalyCount))
	}
	return out
}

func joinGroups(groups []GroupValue) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = fmt.Sprintf("%s (%s)", g.Group, formatNumber(round2(g.Value)))
	}
	return strings.Join(parts, ", ")
}

// suggestChart picks a render hint from the shape of the result: two
// columns of label plus number draw a bar, a temporal label draws a line.
func suggestChart(rs *models.ResultSet) string {
	if len(rs.Columns) != 2 || len(rs.Rows) == 0 {
		return "table"
	}

	firstCol := make([]string, 0, len(rs.Rows))
	secondNumeric := true
	for _, row := range rs.Rows {
		if len(row) < 2 {
			return "table"
		}
		firstCol = append(firstCol, fmt.Sprintf("%v", row[0]))
		if _, ok := toFloat(row[1]); !ok {
			secondNumeric = false
		}
	}
	if !secondNumeric {
		return "table"
	}

	if schema.LooksTemporal(firstCol) {
		return "line"
	}
	return "bar"
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func populationStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
