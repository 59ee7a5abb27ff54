package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver registration
)

// Client is the DuckDB store for the report audit trail.
type Client struct {
	DB  *sql.DB
	dir string
}

// NewClient opens the audit database "duck.db" in dir, creating dir if
// needed. Parquet exports are written to the same directory.
func NewClient(dir string) (*Client, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dir, "duck.db?threads=4"))
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Client{
		DB:  db,
		dir: dir,
	}, nil
}

// Start pings the database and creates the audit tables.
func (c *Client) Start(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	if err := c.migrate(ctx); err != nil {
		return err
	}
	return nil
}

// Stop closes the DuckDB connection.
func (c *Client) Stop() error {
	return c.DB.Close()
}

// WriteParquet executes the provided query and writes the results to a Parquet file.
// The file is saved in the client's directory with the given filename.
func (c *Client) WriteParquet(ctx context.Context, query, filename string) (string, error) {
	outPath := filepath.Join(c.dir, filename)
	sqlQuery := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT 'parquet')", query, outPath)
	_, err := c.DB.ExecContext(ctx, sqlQuery)
	if err != nil {
		return "", fmt.Errorf("failed to write parquet file: %w", err)
	}
	return outPath, nil
}
