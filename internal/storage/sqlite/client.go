package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/storage/models"
	"github.com/askdata/backend/pkg/logger"
)

// ColumnDef is a dataset column with its declared SQLite storage type
// (INTEGER, REAL or TEXT).
type ColumnDef struct {
	Name        string
	StorageType string
}

// Client owns the single dataset table. Uploads replace it wholesale;
// reads go through ExecuteRead which only admits single SELECT statements.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// ReplaceDataset drops and recreates the dataset table inside one
// transaction, so concurrent readers see the old table or the new one but
// never a half-written state.
func (c *Client) ReplaceDataset(table string, cols []ColumnDef, rows [][]string) error {
	if len(cols) == 0 {
		return fmt.Errorf("dataset has no columns")
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	defs := make([]string, 0, len(cols))
	names := make([]string, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	for _, col := range cols {
		defs = append(defs, fmt.Sprintf(`"%s" %s`, col.Name, col.StorageType))
		names = append(names, fmt.Sprintf(`"%s"`, col.Name))
		placeholders = append(placeholders, "?")
	}

	createStmt := fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table, strings.Join(defs, ", "))
	if _, err := tx.Exec(createStmt); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	insertStmt := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(cols))
		for i := range cols {
			var val string
			if i < len(row) {
				val = row[i]
			}
			if val == "" {
				args[i] = nil
			} else {
				args[i] = val
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}

	logger.Info("Dataset replaced",
		zap.String("table", table),
		zap.Int("columns", len(cols)),
		zap.Int("rows", len(rows)),
	)

	return nil
}

// ExecuteRead runs one read-only statement and returns its ordered rows.
func (c *Client) ExecuteRead(ctx context.Context, sqlText string) (*models.ResultSet, error) {
	normalized, err := NormalizeRead(sqlText)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &models.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return result, nil
}

// Sample returns up to n rows of the dataset table, for previews and
// context building.
func (c *Client) Sample(ctx context.Context, table string, n int) (*models.ResultSet, error) {
	return c.ExecuteRead(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, table, n))
}

// RowCount reports the dataset table size.
func (c *Client) RowCount(ctx context.Context, table string) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}
