package retrieval

import (
	"fmt"
	"strings"

	"github.com/askdata/backend/internal/schema"
	"github.com/askdata/backend/internal/storage/models"
)

const sampleRowLimit = 3

// BuildChunks renders a dataset into the retrieval corpus: one table
// overview, one chunk per column, one chunk of sample rows. Chunks are
// plain sentences so a nearest-neighbour match reads directly as prompt
// context.
func BuildChunks(table string, rowCount int, class schema.Classification, columns []schema.Column, sample *models.ResultSet) []string {
	chunks := make([]string, 0, len(columns)+2)

	chunks = append(chunks, fmt.Sprintf(
		"Table name: %s. The dataset contains %d rows and %d columns.",
		table, rowCount, len(columns),
	))

	kinds := columnKinds(class)
	for _, col := range columns {
		chunk := fmt.Sprintf("Column: %s. Type: %s.", col.Name, kinds[col.Name])
		if vals := sampleValues(col.Values, sampleRowLimit); vals != "" {
			chunk += fmt.Sprintf(" Sample values: %s.", vals)
		}
		chunks = append(chunks, chunk)
	}

	if rows := renderSampleRows(sample, sampleRowLimit); rows != "" {
		chunks = append(chunks, "Sample rows: "+rows)
	}

	return chunks
}

func columnKinds(class schema.Classification) map[string]string {
	kinds := make(map[string]string)
	for _, c := range class.Numeric {
		kinds[c] = "numeric"
	}
	for _, c := range class.Categorical {
		kinds[c] = "categorical"
	}
	for _, c := range class.Temporal {
		kinds[c] = "temporal"
	}
	return kinds
}

func sampleValues(values []string, limit int) string {
	picked := make([]string, 0, limit)
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		picked = append(picked, v)
		if len(picked) == limit {
			break
		}
	}
	return strings.Join(picked, ", ")
}

func renderSampleRows(sample *models.ResultSet, limit int) string {
	if sample == nil || sample.Empty() {
		return ""
	}

	var sb strings.Builder
	for i, row := range sample.Rows {
		if i == limit {
			break
		}
		if i > 0 {
			sb.WriteString("; ")
		}
		parts := make([]string, 0, len(sample.Columns))
		for j, col := range sample.Columns {
			if j < len(row) {
				parts = append(parts, fmt.Sprintf("%s=%v", col, row[j]))
			}
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
