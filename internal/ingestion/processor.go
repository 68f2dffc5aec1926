package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdata/backend/internal/llm"
	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/internal/retrieval"
	"github.com/askdata/backend/internal/schema"
	"github.com/askdata/backend/internal/storage/models"
	"github.com/askdata/backend/internal/storage/sqlite"
	"github.com/askdata/backend/pkg/logger"
)

// Indexer rebuilds the retrieval corpus for a new dataset. May be nil.
type Indexer interface {
	Reset(ctx context.Context) error
	Index(ctx context.Context, chunks []string) error
}

// Invalidator wipes cached answers that refer to the replaced dataset.
// May be nil.
type Invalidator interface {
	InvalidateAnswers(ctx context.Context) error
}

// Summarizer produces the analyst overview of the new dataset. May be nil.
type Summarizer interface {
	SummarizeDataset(ctx context.Context, columnTypes string, preview string, rowCount int) llm.DatasetSummary
}

// Result describes the dataset that is now live.
type Result struct {
	Meta           models.DatasetMeta `json:"meta"`
	Classification schema.Classification
	Preview        *models.ResultSet
	Summary        llm.DatasetSummary
}

// Processor turns an uploaded CSV into the live dataset: type-inferred
// SQLite table, column classification, retrieval corpus, and cache reset.
// Only the SQLite swap can fail the upload; indexing, invalidation and
// summarization are best-effort.
type Processor struct {
	store       *sqlite.Client
	indexer     Indexer
	invalidator Invalidator
	summarizer  Summarizer
	table       string
	previewRows int
}

func NewProcessor(store *sqlite.Client, indexer Indexer, invalidator Invalidator, summarizer Summarizer, table string, previewRows int) *Processor {
	if table == "" {
		table = "data"
	}
	if previewRows <= 0 {
		previewRows = 20
	}

	return &Processor{
		store:       store,
		indexer:     indexer,
		invalidator: invalidator,
		summarizer:  summarizer,
		table:       table,
		previewRows: previewRows,
	}
}

// Process ingests one CSV stream. The existing dataset is replaced
// atomically, so a failed upload leaves the previous table intact.
func (p *Processor) Process(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	header, rows, err := parseCSV(r)
	if err != nil {
		return nil, err
	}

	cols := InferColumns(header, rows)
	if err := p.store.ReplaceDataset(p.table, cols, rows); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	class := schema.Classify(schemaColumns(cols, rows))

	preview, err := p.store.Sample(ctx, p.table, p.previewRows)
	if err != nil {
		logger.Warn("Dataset preview failed", zap.Error(err))
		preview = &models.ResultSet{Columns: header}
	}

	meta := models.DatasetMeta{
		Filename:   filename,
		Table:      p.table,
		Columns:    header,
		RowCount:   len(rows),
		UploadedAt: time.Now().UTC(),
	}

	p.refreshIndex(ctx, meta, class, cols, rows)
	p.invalidate(ctx)

	result := &Result{
		Meta:           meta,
		Classification: class,
		Preview:        preview,
	}
	if p.summarizer != nil {
		result.Summary = p.summarizer.SummarizeDataset(ctx,
			renderColumnTypes(class), renderPreview(preview), len(rows))
	}

	metrics.DatasetsProcessed.Inc()
	metrics.DatasetRows.Set(float64(len(rows)))
	logger.Info("Dataset ingested",
		zap.String("filename", filename),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(header)),
	)

	return result, nil
}

func parseCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == "" {
			return nil, nil, fmt.Errorf("csv header has an empty column name at position %d", i+1)
		}
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		rows = append(rows, record)
	}

	return header, rows, nil
}

// InferColumns picks a SQLite storage type per column: INTEGER when every
// non-empty value is an integer, REAL when every non-empty value is a
// number, TEXT otherwise. Columns with no values at all stay TEXT.
func InferColumns(header []string, rows [][]string) []sqlite.ColumnDef {
	cols := make([]sqlite.ColumnDef, len(header))
	for i, name := range header {
		cols[i] = sqlite.ColumnDef{Name: name, StorageType: inferStorageType(columnValues(rows, i))}
	}
	return cols
}

func inferStorageType(values []string) string {
	allInt := true
	allFloat := true
	seen := false

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
		if !allFloat {
			break
		}
	}

	switch {
	case !seen:
		return "TEXT"
	case allInt:
		return "INTEGER"
	case allFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func columnValues(rows [][]string, idx int) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if idx < len(row) {
			values = append(values, row[idx])
		}
	}
	return values
}

func schemaColumns(cols []sqlite.ColumnDef, rows [][]string) []schema.Column {
	out := make([]schema.Column, len(cols))
	for i, col := range cols {
		out[i] = schema.Column{
			Name:        col.Name,
			StorageType: col.StorageType,
			Values:      columnValues(rows, i),
		}
	}
	return out
}

func (p *Processor) refreshIndex(ctx context.Context, meta models.DatasetMeta, class schema.Classification, cols []sqlite.ColumnDef, rows [][]string) {
	if p.indexer == nil {
		return
	}

	if err := p.indexer.Reset(ctx); err != nil {
		logger.Warn("Vector collection reset failed", zap.Error(err))
		return
	}

	chunks := retrieval.BuildChunks(meta.Table, meta.RowCount, class, schemaColumns(cols, rows), sampleResultSet(meta.Columns, rows))
	if err := p.indexer.Index(ctx, chunks); err != nil {
		logger.Warn("Context indexing failed", zap.Error(err))
	}
}

func sampleResultSet(header []string, rows [][]string) *models.ResultSet {
	rs := &models.ResultSet{Columns: header}
	for i, row := range rows {
		if i == 3 {
			break
		}
		converted := make([]any, len(row))
		for j, v := range row {
			converted[j] = v
		}
		rs.Rows = append(rs.Rows, converted)
	}
	return rs
}

func (p *Processor) invalidate(ctx context.Context) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.InvalidateAnswers(ctx); err != nil {
		logger.Warn("Answer cache invalidation failed", zap.Error(err))
	}
}

func renderColumnTypes(class schema.Classification) string {
	return fmt.Sprintf("numeric: [%s], categorical: [%s], temporal: [%s]",
		strings.Join(class.Numeric, ", "),
		strings.Join(class.Categorical, ", "),
		strings.Join(class.Temporal, ", "),
	)
}

func renderPreview(preview *models.ResultSet) string {
	if preview == nil || preview.Empty() {
		return "(no rows)"
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(preview.Columns, ", "))
	for i, row := range preview.Rows {
		if i == 10 {
			break
		}
		sb.WriteString("\n")
		parts := make([]string, len(row))
		for j, v := range row {
			parts[j] = fmt.Sprintf("%v", v)
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
