package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ftr/internal/domain"
)

// NodeSource resolves node ids to their place in the forest
type NodeSource interface {
	Get(id string) (*domain.Node, bool)
	Ancestor(id string, kind domain.Kind) (*domain.Node, bool)
}

// Collector is a reporter that turns a run's events into a TestResultsOutput
type Collector struct {
	mu       sync.Mutex
	nodes    NodeSource
	project  string
	runID    string
	started  time.Time
	selected int
	passed   []string
	failures []domain.TestFailure
	skipped  int
	errored  int
}

// NewCollector creates a Collector for a single run
func NewCollector(nodes NodeSource, projectPath string) *Collector {
	return &Collector{
		nodes:   nodes,
		project: projectPath,
		runID:   uuid.NewString(),
		started: time.Now(),
	}
}

// RunID identifies the collected run
func (c *Collector) RunID() string {
	return c.runID
}

// Report implements domain.Reporter
func (c *Collector) Report(ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case domain.EventRunStarted:
		c.selected = len(ev.IDs)
	case domain.EventPassed:
		c.passed = append(c.passed, ev.NodeID)
	case domain.EventFailed:
		c.failures = append(c.failures, c.failure(ev))
	case domain.EventSkipped:
		c.skipped++
	case domain.EventErrored:
		c.errored++
	}
}

func (c *Collector) failure(ev domain.Event) domain.TestFailure {
	f := domain.TestFailure{NodeID: ev.NodeID, Message: ev.Message}
	if n, ok := c.nodes.Get(ev.NodeID); ok {
		f.TestName = n.Label
		f.FilePath = n.Path
		if n.Range != nil {
			f.Line = n.Range.Start.Line + 1
		}
	}
	if g, ok := c.nodes.Ancestor(ev.NodeID, domain.KindGroup); ok {
		f.ContractName = g.Label
	}
	if ev.Location != nil {
		f.FilePath = ev.Location.Path
		f.Line = ev.Location.Range.Start.Line + 1
	}
	return f
}

// Output returns the collected results
func (c *Collector) Output() *domain.TestResultsOutput {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.started)
	passed := append([]string(nil), c.passed...)
	sort.Strings(passed)
	return &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			RunID:           c.runID,
			ProjectPath:     c.project,
			Selected:        c.selected,
			PassedTests:     len(c.passed),
			FailedTests:     len(c.failures),
			SkippedNodes:    c.skipped,
			ErroredNodes:    c.errored,
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       c.started.Format(time.RFC3339),
		},
		Details: append([]domain.TestFailure(nil), c.failures...),
		Passed:  passed,
	}
}

// MergeRerun folds the output of a re-run of some tests into the previous output.
// Tests the re-run reported replace their previous entry; everything else is kept.
func MergeRerun(previous, rerun *domain.TestResultsOutput) *domain.TestResultsOutput {
	if previous == nil {
		return rerun
	}

	reported := make(map[string]bool, len(rerun.Passed)+len(rerun.Details))
	for _, id := range rerun.Passed {
		reported[id] = true
	}
	for _, f := range rerun.Details {
		reported[f.NodeID] = true
	}

	merged := &domain.TestResultsOutput{Meta: rerun.Meta}
	for _, f := range previous.Details {
		if !reported[f.NodeID] {
			merged.Details = append(merged.Details, f)
		}
	}
	merged.Details = append(merged.Details, rerun.Details...)

	for _, id := range previous.Passed {
		if !reported[id] {
			merged.Passed = append(merged.Passed, id)
		}
	}
	merged.Passed = append(merged.Passed, rerun.Passed...)
	sort.Strings(merged.Passed)

	merged.Meta.PassedTests = len(merged.Passed)
	merged.Meta.FailedTests = len(merged.Details)
	return merged
}
