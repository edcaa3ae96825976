package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftr/internal/config"
	"ftr/internal/domain"
)

func TestSQLStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLStore(db)
	defer store.Close()

	out := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			RunID: "run-1", ProjectPath: "/p", Selected: 1, PassedTests: 1, FailedTests: 1,
			DurationSeconds: 1.5, Timestamp: "2026-01-02T03:04:05Z",
		},
		Details: []domain.TestFailure{{NodeID: "f/C/testB", ContractName: "C", TestName: "testB", FilePath: "/p/f", Line: 4, Message: "boom"}},
		Passed:  []string{"f/C/testA"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ftr_runs")).
		WithArgs("run-1", "/p", 1, 1, 1, 0, 0, int64(1500), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ftr_outcomes")).
		WithArgs("run-1", "f/C/testA", "passed", "", "", "", 0, "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ftr_outcomes")).
		WithArgs("run-1", "f/C/testB", "failed", "C", "testB", "/p/f", 4, "boom").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Append(context.Background(), out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AppendRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLStore(db)
	defer store.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ftr_runs")).WillReturnError(errors.New("table missing"))
	mock.ExpectRollback()

	err = store.Append(context.Background(), &domain.TestResultsOutput{Meta: domain.TestResultsMeta{RunID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLStore(db)
	defer store.Close()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"run_id", "project_path", "selected", "passed", "failed", "skipped", "errored", "duration_ms", "started_at"}).
		AddRow("run-2", "/p", 3, 5, 1, 0, 1, 2500, started)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT run_id")).WithArgs(10).WillReturnRows(rows)

	records, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RunRecord{
		RunID: "run-2", ProjectPath: "/p", Selected: 3, Passed: 5, Failed: 1, Errored: 1,
		Duration: 2500 * time.Millisecond, StartedAt: started,
	}, records[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverName(t *testing.T) {
	name, err := DriverName(config.StoreSQLite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)

	name, err = DriverName(config.StoreMySQL)
	require.NoError(t, err)
	assert.Equal(t, "mysql", name)

	_, err = DriverName(config.StoreJSON)
	assert.Error(t, err)
}

func TestOpenSQL(t *testing.T) {
	_, err := OpenSQL(config.StoreMySQL, "")
	assert.Error(t, err)

	_, err = OpenSQL(config.StoreMySQL, "not a dsn")
	assert.Error(t, err)

	db, err := OpenSQL(config.StoreMySQL, "root@tcp(127.0.0.1:3306)/ftr")
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
