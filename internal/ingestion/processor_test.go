package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdata/backend/internal/storage/sqlite"
)

func TestInferColumns(t *testing.T) {
	header := []string{"id", "price", "name", "joined"}
	rows := [][]string{
		{"1", "9.99", "Ana", "2024-01-05"},
		{"2", "12", "Bo", "2024-02-11"},
		{"3", "", "Cy", "2024-03-20"},
	}

	cols := InferColumns(header, rows)

	require.Len(t, cols, 4)
	assert.Equal(t, sqlite.ColumnDef{Name: "id", StorageType: "INTEGER"}, cols[0])
	assert.Equal(t, sqlite.ColumnDef{Name: "price", StorageType: "REAL"}, cols[1])
	assert.Equal(t, sqlite.ColumnDef{Name: "name", StorageType: "TEXT"}, cols[2])
	// dates stay TEXT at the storage layer; classification happens later
	assert.Equal(t, sqlite.ColumnDef{Name: "joined", StorageType: "TEXT"}, cols[3])
}

func TestInferStorageTypeEdgeCases(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		want   string
	}{
		{"all empty", []string{"", "  "}, "TEXT"},
		{"no rows", nil, "TEXT"},
		{"ints with blanks", []string{"1", "", "3"}, "INTEGER"},
		{"mixed int and float", []string{"1", "2.5"}, "REAL"},
		{"negative ints", []string{"-4", "0"}, "INTEGER"},
		{"numeric then text", []string{"10", "n/a"}, "TEXT"},
		{"scientific notation", []string{"1e3", "2e3"}, "REAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inferStorageType(tc.values))
		})
	}
}

func TestProcessEndToEnd(t *testing.T) {
	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	defer store.Close()

	p := NewProcessor(store, nil, nil, nil, "data", 20)

	csvData := "department,salary\nSales,50000\nHR,42000\nSales,61000\n"
	result, err := p.Process(context.Background(), "staff.csv", strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, "staff.csv", result.Meta.Filename)
	assert.Equal(t, "data", result.Meta.Table)
	assert.Equal(t, 3, result.Meta.RowCount)
	assert.Equal(t, []string{"department", "salary"}, result.Meta.Columns)

	assert.Equal(t, []string{"salary"}, result.Classification.Numeric)
	assert.Equal(t, []string{"department"}, result.Classification.Categorical)

	rs, err := store.ExecuteRead(context.Background(),
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "Sales", rs.Rows[0][0])
}

func TestProcessReplacesPreviousDataset(t *testing.T) {
	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	defer store.Close()

	p := NewProcessor(store, nil, nil, nil, "data", 20)
	ctx := context.Background()

	_, err = p.Process(ctx, "old.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	result, err := p.Process(ctx, "new.csv", strings.NewReader("x\nfoo\nbar\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Meta.RowCount)

	rs, err := store.ExecuteRead(ctx, "SELECT x FROM data")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)

	_, err = store.ExecuteRead(ctx, "SELECT a FROM data")
	assert.Error(t, err)
}

func TestProcessRejectsEmptyFile(t *testing.T) {
	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	defer store.Close()

	p := NewProcessor(store, nil, nil, nil, "data", 20)

	_, err = p.Process(context.Background(), "empty.csv", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestProcessRejectsBlankHeaderName(t *testing.T) {
	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	defer store.Close()

	p := NewProcessor(store, nil, nil, nil, "data", 20)

	_, err = p.Process(context.Background(), "bad.csv", strings.NewReader("a,,c\n1,2,3\n"))
	require.Error(t, err)
}

type recordingIndexer struct {
	resets int
	chunks []string
}

func (r *recordingIndexer) Reset(context.Context) error { r.resets++; return nil }
func (r *recordingIndexer) Index(_ context.Context, chunks []string) error {
	r.chunks = chunks
	return nil
}

func TestProcessRebuildsRetrievalCorpus(t *testing.T) {
	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	defer store.Close()

	indexer := &recordingIndexer{}
	p := NewProcessor(store, indexer, nil, nil, "data", 20)

	_, err = p.Process(context.Background(), "staff.csv",
		strings.NewReader("department,salary\nSales,50000\n"))
	require.NoError(t, err)

	assert.Equal(t, 1, indexer.resets)
	require.NotEmpty(t, indexer.chunks)
	assert.Contains(t, indexer.chunks[0], "Table name: data")
	assert.Contains(t, strings.Join(indexer.chunks, "\n"), "Column: salary. Type: numeric")
}
