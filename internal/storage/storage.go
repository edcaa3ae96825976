package storage

import (
	"context"
	"time"

	"ftr/internal/config"
	"ftr/internal/domain"
)

// Storage persists and loads the last run's results (e.g. for the faills viewer).
type Storage interface {
	Save(output *domain.TestResultsOutput) error
	Load() (*domain.TestResultsOutput, error)
}

// History keeps a record of every run
type History interface {
	Append(ctx context.Context, output *domain.TestResultsOutput) error
	List(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// RunRecord is one row of run history
type RunRecord struct {
	RunID       string
	ProjectPath string
	Selected    int
	Passed      int
	Failed      int
	Skipped     int
	Errored     int
	Duration    time.Duration
	StartedAt   time.Time
}

// JSONStorage stores results in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
