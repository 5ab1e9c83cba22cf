// Package db runs the SQL queries behind >>>db assertion blocks.
// SQLite is the supported engine.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// QueryResult holds the rows returned by an assertion query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Client wraps a database connection used by db assertions.
type Client struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewClient opens a database from a connection string. Accepted forms are
// sqlite://path/to.db, sqlite:path/to.db, or a bare file path.
func NewClient(connectionString string) (*Client, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Client{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Query executes a SQL query and returns every row.
func (c *Client) Query(query string) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// QueryColumn runs a query and returns the named column of the first row.
// An empty column name selects the first column.
func (c *Client) QueryColumn(query, column string) (any, error) {
	result, err := c.Query(query)
	if err != nil {
		return nil, err
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("query returned no rows")
	}

	if column == "" {
		if len(result.Columns) == 0 {
			return nil, fmt.Errorf("query returned no columns")
		}
		column = result.Columns[0]
	}

	value, ok := result.Rows[0][column]
	if !ok {
		return nil, fmt.Errorf("column %q not in query result (have %s)", column, strings.Join(result.Columns, ", "))
	}
	return value, nil
}

// Exec runs a statement that returns no rows, such as test fixture setup.
func (c *Client) Exec(statement string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.queryTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, statement)
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty connection string")
	}

	if rest, ok := strings.CutPrefix(connStr, "sqlite://"); ok {
		return rest, nil
	}
	if rest, ok := strings.CutPrefix(connStr, "sqlite:"); ok {
		return rest, nil
	}
	if i := strings.Index(connStr, "://"); i >= 0 {
		return "", fmt.Errorf("unsupported database scheme: %s", connStr[:i])
	}
	return connStr, nil
}
