package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Run is one report execution as kept in the audit trail.
type Run struct {
	ID            string
	Trigger       string
	ReferenceDate time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	DryRun        bool
	Posted        bool
	Error         string
	Removals      []RemovalAttempt
}

// RemovalAttempt records one member removal. Removed is false for dry runs
// and failed attempts; Error is set only for the latter.
type RemovalAttempt struct {
	UserID      string
	FullName    string
	Removed     bool
	Error       string
	AttemptedAt time.Time
}

func (c *Client) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			run_id VARCHAR PRIMARY KEY,
			trigger VARCHAR NOT NULL,
			reference_date DATE NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			status VARCHAR NOT NULL,
			dry_run BOOLEAN NOT NULL,
			posted BOOLEAN NOT NULL,
			removal_count INTEGER NOT NULL,
			error VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS report_removals (
			run_id VARCHAR NOT NULL,
			user_id VARCHAR NOT NULL,
			full_name VARCHAR NOT NULL,
			removed BOOLEAN NOT NULL,
			error VARCHAR,
			attempted_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit tables: %w", err)
		}
	}

	slog.Info("report audit tables created or already exist")
	return nil
}

// RecordRun stores a run and its removal attempts in one transaction.
func (c *Client) RecordRun(ctx context.Context, run Run) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO report_runs (run_id, trigger, reference_date, started_at, finished_at, status, dry_run, posted, removal_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.ReferenceDate.Format("2006-01-02"), run.StartedAt, run.FinishedAt,
		run.Status, run.DryRun, run.Posted, len(run.Removals), nullString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for _, r := range run.Removals {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO report_removals (run_id, user_id, full_name, removed, error, attempted_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, r.UserID, r.FullName, r.Removed, nullString(r.Error), r.AttemptedAt)
		if err != nil {
			return fmt.Errorf("failed to insert removal for %s: %w", r.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first, with their removals.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT run_id, trigger, reference_date, started_at, finished_at, status, dry_run, posted, error
		FROM report_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var runErr sql.NullString
		err := rows.Scan(&run.ID, &run.Trigger, &run.ReferenceDate, &run.StartedAt, &run.FinishedAt,
			&run.Status, &run.DryRun, &run.Posted, &runErr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Error = runErr.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for i := range runs {
		removals, err := c.removalsForRun(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Removals = removals
	}

	return runs, nil
}

func (c *Client) removalsForRun(ctx context.Context, runID string) ([]RemovalAttempt, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT user_id, full_name, removed, error, attempted_at
		FROM report_removals WHERE run_id = ? ORDER BY attempted_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query removals for run %s: %w", runID, err)
	}
	defer rows.Close()

	var removals []RemovalAttempt
	for rows.Next() {
		var r RemovalAttempt
		var removalErr sql.NullString
		if err := rows.Scan(&r.UserID, &r.FullName, &r.Removed, &removalErr, &r.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan removal: %w", err)
		}
		r.Error = removalErr.String
		removals = append(removals, r)
	}
	return removals, rows.Err()
}

// ExportAudit writes both audit tables to parquet files in the client directory.
func (c *Client) ExportAudit(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	for _, table := range []string{"report_runs", "report_removals"} {
		path, err := c.WriteParquet(ctx, "SELECT * FROM "+table, fmt.Sprintf("%s_%s.parquet", prefix, table))
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
