package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"ftr/internal/config"
)

// Migrator brings a database up to the current schema
type Migrator interface {
	Run(ctx context.Context) (applied int, err error)
}

// Progress is told about each applied schema step
type Progress interface {
	Add(n int) error
}

type step struct {
	version int
	name    string
	up      map[string]string // store driver -> statement
}

var steps = []step{
	{
		version: 1,
		name:    "create runs",
		up: map[string]string{
			config.StoreSQLite: `CREATE TABLE IF NOT EXISTS ftr_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	project_path TEXT NOT NULL,
	selected INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	errored INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	started_at DATETIME NOT NULL
)`,
			config.StoreMySQL: `CREATE TABLE IF NOT EXISTS ftr_runs (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(36) NOT NULL UNIQUE,
	project_path VARCHAR(1024) NOT NULL,
	selected INT NOT NULL,
	passed INT NOT NULL,
	failed INT NOT NULL,
	skipped INT NOT NULL,
	errored INT NOT NULL,
	duration_ms BIGINT NOT NULL,
	started_at DATETIME NOT NULL
)`,
		},
	},
	{
		version: 2,
		name:    "create outcomes",
		up: map[string]string{
			config.StoreSQLite: `CREATE TABLE IF NOT EXISTS ftr_outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES ftr_runs(run_id),
	node_id TEXT NOT NULL,
	status TEXT NOT NULL,
	contract_name TEXT NOT NULL,
	test_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	line INTEGER NOT NULL,
	message TEXT NOT NULL
)`,
			config.StoreMySQL: `CREATE TABLE IF NOT EXISTS ftr_outcomes (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(36) NOT NULL,
	node_id VARCHAR(2048) NOT NULL,
	status VARCHAR(16) NOT NULL,
	contract_name VARCHAR(255) NOT NULL,
	test_name VARCHAR(255) NOT NULL,
	file_path VARCHAR(1024) NOT NULL,
	line INT NOT NULL,
	message TEXT NOT NULL,
	INDEX idx_ftr_outcomes_run (run_id)
)`,
		},
	},
}

const (
	createVersions = `CREATE TABLE IF NOT EXISTS ftr_schema_versions (version INTEGER NOT NULL PRIMARY KEY, name VARCHAR(255) NOT NULL)`
	currentVersion = `SELECT COALESCE(MAX(version), 0) FROM ftr_schema_versions`
	recordVersion  = `INSERT INTO ftr_schema_versions (version, name) VALUES (?, ?)`
)

// Steps returns the number of schema steps known to this build
func Steps() int {
	return len(steps)
}

// SchemaMigrator applies the run history schema to a SQLite or MySQL database
type SchemaMigrator struct {
	db       *sql.DB
	driver   string
	progress Progress
	logger   *slog.Logger
}

// NewSchemaMigrator creates a migrator for db; progress may be nil
func NewSchemaMigrator(db *sql.DB, driver string, progress Progress, logger *slog.Logger) *SchemaMigrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaMigrator{db: db, driver: driver, progress: progress, logger: logger}
}

// Run applies every step newer than the recorded version and returns how many ran
func (m *SchemaMigrator) Run(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, createVersions); err != nil {
		return 0, fmt.Errorf("create version table: %w", err)
	}

	var version int
	if err := m.db.QueryRowContext(ctx, currentVersion).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, s := range steps {
		if s.version <= version {
			continue
		}
		stmt, ok := s.up[m.driver]
		if !ok {
			return applied, fmt.Errorf("schema step %d has no %s statement", s.version, m.driver)
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return applied, fmt.Errorf("schema step %d (%s): %w", s.version, s.name, err)
		}
		if _, err := m.db.ExecContext(ctx, recordVersion, s.version, s.name); err != nil {
			return applied, fmt.Errorf("record schema step %d: %w", s.version, err)
		}
		m.logger.Debug("schema step applied", "version", s.version, "name", s.name)
		applied++
		if m.progress != nil {
			_ = m.progress.Add(1)
		}
	}
	return applied, nil
}
