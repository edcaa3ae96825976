package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"ftr/internal/config"
	"ftr/internal/domain"
)

const (
	insertRun = `INSERT INTO ftr_runs
	(run_id, project_path, selected, passed, failed, skipped, errored, duration_ms, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertOutcome = `INSERT INTO ftr_outcomes
	(run_id, node_id, status, contract_name, test_name, file_path, line, message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	selectRuns = `SELECT run_id, project_path, selected, passed, failed, skipped, errored, duration_ms, started_at
	FROM ftr_runs ORDER BY started_at DESC, id DESC LIMIT ?`
)

const (
	statusPassed = "passed"
	statusFailed = "failed"
)

// SQLStore keeps run history in a MySQL or SQLite database
type SQLStore struct {
	db *sql.DB
}

// DriverName maps a configured store driver to its database/sql driver name
func DriverName(driver string) (string, error) {
	switch driver {
	case config.StoreSQLite:
		return "sqlite", nil
	case config.StoreMySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("store driver %q has no run history", driver)
}

// OpenSQL opens the history database for a configured store driver
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("store %s needs a dsn", driver)
	}
	if name == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return db, nil
}

// NewSQLStore wraps an open database whose schema is already migrated
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Append records the run and each of its test outcomes in one transaction
func (s *SQLStore) Append(ctx context.Context, output *domain.TestResultsOutput) error {
	meta := output.Meta
	startedAt, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		startedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	durationMS := int64(meta.DurationSeconds * 1000)
	if _, err := tx.ExecContext(ctx, insertRun, meta.RunID, meta.ProjectPath, meta.Selected,
		meta.PassedTests, meta.FailedTests, meta.SkippedNodes, meta.ErroredNodes, durationMS, startedAt.UTC()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, id := range output.Passed {
		if _, err := tx.ExecContext(ctx, insertOutcome, meta.RunID, id, statusPassed, "", "", "", 0, ""); err != nil {
			return fmt.Errorf("insert outcome %s: %w", id, err)
		}
	}
	for _, f := range output.Details {
		if _, err := tx.ExecContext(ctx, insertOutcome, meta.RunID, f.NodeID, statusFailed,
			f.ContractName, f.TestName, f.FilePath, f.Line, f.Message); err != nil {
			return fmt.Errorf("insert outcome %s: %w", f.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// List returns the most recent runs first
func (s *SQLStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			durationMS int64
		)
		if err := rows.Scan(&r.RunID, &r.ProjectPath, &r.Selected, &r.Passed, &r.Failed,
			&r.Skipped, &r.Errored, &durationMS, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
