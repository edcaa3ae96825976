package migration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"

	"ftr/internal/config"
)

// DatabaseManager makes sure the history database exists before it is migrated
type DatabaseManager struct {
	config *config.Config
	// open connects to a server; replaced in tests
	open func(driver, dsn string) (*sql.DB, error)
}

// NewDatabaseManager creates a new DatabaseManager
func NewDatabaseManager(cfg *config.Config) *DatabaseManager {
	return &DatabaseManager{config: cfg, open: sql.Open}
}

// EnsureDatabase creates the configured history database when it is missing.
// It reports whether anything was created.
func (dm *DatabaseManager) EnsureDatabase(ctx context.Context) (bool, error) {
	dsn := dm.config.GetStoreDSN()
	switch dm.config.StoreDriver {
	case config.StoreSQLite:
		return dm.ensureFile(dsn)
	case config.StoreMySQL:
		return dm.ensureSchema(ctx, dsn)
	}
	return false, fmt.Errorf("store driver %q has no database", dm.config.StoreDriver)
}

func (dm *DatabaseManager) ensureFile(dsn string) (bool, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return false, nil
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create history dir: %w", err)
	}
	return true, nil
}

func (dm *DatabaseManager) ensureSchema(ctx context.Context, dsn string) (bool, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return false, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dbName := cfg.DBName
	if !isValidDatabaseName(dbName) {
		return false, fmt.Errorf("invalid database name: %q", dbName)
	}

	// Connect to the server without selecting the database
	cfg.DBName = ""
	db, err := dm.open("mysql", cfg.FormatDSN())
	if err != nil {
		return false, fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("failed to ping database server: %w", err)
	}

	exists, err := databaseExists(ctx, db, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", dbName, err)
	}
	if exists {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return false, fmt.Errorf("failed to create database %s: %w", dbName, err)
	}
	return true, nil
}

func databaseExists(ctx context.Context, db *sql.DB, dbName string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, dbName).Scan(&exists)
	return exists, err
}

// isValidDatabaseName only accepts names that are safe to quote with backticks
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
		default:
			return false
		}
	}
	return true
}
