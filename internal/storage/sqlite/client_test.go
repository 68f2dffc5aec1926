package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func loadEmployees(t *testing.T, client *Client) {
	t.Helper()
	cols := []ColumnDef{
		{Name: "department", StorageType: "TEXT"},
		{Name: "salary", StorageType: "REAL"},
	}
	rows := [][]string{
		{"engineering", "100"},
		{"engineering", "120"},
		{"sales", "80"},
	}
	require.NoError(t, client.ReplaceDataset("data", cols, rows))
}

func TestReplaceDatasetAndExecuteRead(t *testing.T) {
	client := newTestClient(t)
	loadEmployees(t, client)

	rs, err := client.ExecuteRead(context.Background(),
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC")
	require.NoError(t, err)
	require.Equal(t, []string{"group_col", "value"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "engineering", rs.Rows[0][0])
	assert.Equal(t, 110.0, rs.Rows[0][1])
}

func TestReplaceDatasetDropsPreviousUpload(t *testing.T) {
	client := newTestClient(t)
	loadEmployees(t, client)

	cols := []ColumnDef{{Name: "region", StorageType: "TEXT"}}
	require.NoError(t, client.ReplaceDataset("data", cols, [][]string{{"emea"}}))

	_, err := client.ExecuteRead(context.Background(), "SELECT salary FROM data")
	assert.Error(t, err)

	count, err := client.RowCount(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExecuteReadRejectsWrites(t *testing.T) {
	client := newTestClient(t)
	loadEmployees(t, client)

	_, err := client.ExecuteRead(context.Background(), "DELETE FROM data")
	assert.ErrorIs(t, err, ErrNotReadOnly)

	count, err := client.RowCount(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExecuteReadEmptyValuesAreNull(t *testing.T) {
	client := newTestClient(t)
	cols := []ColumnDef{
		{Name: "name", StorageType: "TEXT"},
		{Name: "score", StorageType: "INTEGER"},
	}
	require.NoError(t, client.ReplaceDataset("data", cols, [][]string{{"a", ""}}))

	rs, err := client.ExecuteRead(context.Background(), "SELECT score FROM data")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Nil(t, rs.Rows[0][0])
}
