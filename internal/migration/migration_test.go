package migration

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftr/internal/config"
)

type countingProgress struct{ n int }

func (p *countingProgress) Add(n int) error {
	p.n += n
	return nil
}

func TestSchemaMigrator_Run(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ftr_schema_versions")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ftr_outcomes")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ftr_schema_versions")).
		WithArgs(2, "create outcomes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	progress := &countingProgress{}
	applied, err := NewSchemaMigrator(db, config.StoreSQLite, progress, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, progress.n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaMigrator_UpToDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ftr_schema_versions")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(Steps()))

	applied, err := NewSchemaMigrator(db, config.StoreMySQL, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaMigrator_StepFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ftr_schema_versions")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ftr_runs")).WillReturnError(errors.New("denied"))

	applied, err := NewSchemaMigrator(db, config.StoreMySQL, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema step 1")
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseManager_SQLite(t *testing.T) {
	cfg := config.New()
	cfg.StoreDriver = config.StoreSQLite
	cfg.StoreDSN = filepath.Join(t.TempDir(), "nested", "history.db")

	created, err := NewDatabaseManager(cfg).EnsureDatabase(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.DirExists(t, filepath.Dir(cfg.StoreDSN))

	require.NoError(t, os.WriteFile(cfg.StoreDSN, nil, 0o644))
	created, err = NewDatabaseManager(cfg).EnsureDatabase(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDatabaseManager_MySQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	cfg := config.New()
	cfg.StoreDriver = config.StoreMySQL
	cfg.StoreDSN = "root:secret@tcp(127.0.0.1:3306)/ftr_history"

	var openedDSN string
	dm := NewDatabaseManager(cfg)
	dm.open = func(driver, dsn string) (*sql.DB, error) {
		openedDSN = dsn
		return db, nil
	}

	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("ftr_history").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE IF NOT EXISTS `ftr_history`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	created, err := dm.EnsureDatabase(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotContains(t, openedDSN, "ftr_history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsValidDatabaseName(t *testing.T) {
	assert.True(t, isValidDatabaseName("ftr_history"))
	assert.False(t, isValidDatabaseName(""))
	assert.False(t, isValidDatabaseName("x`; DROP DATABASE y"))
	assert.False(t, isValidDatabaseName("with-dash"))
}
