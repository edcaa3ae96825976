package parser

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"ftr/internal/domain"
	"ftr/internal/tree"
)

// Correlator attributes result table entries to forest nodes
type Correlator struct {
	logger *slog.Logger
}

// NewCorrelator creates a new Correlator
func NewCorrelator(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{logger: logger}
}

// Report walks the subtree at id and reports passed/failed for every test that
// has a result whose display path is a suffix of the test's file path.
// Tests without such a result, and ids no longer in the forest, report nothing.
func (c *Correlator) Report(forest *tree.Forest, id string, results domain.ResultTable, duration time.Duration, rep domain.Reporter) {
	n, ok := forest.Get(id)
	if !ok {
		c.logger.Debug("node vanished before results were reported", "id", id)
		return
	}
	if n.Kind.IsSuite() {
		for _, cid := range n.Children {
			c.Report(forest, cid, results, duration, rep)
		}
		return
	}

	group, ok := forest.Ancestor(id, domain.KindGroup)
	if !ok {
		return
	}
	file, ok := forest.Ancestor(id, domain.KindFile)
	if !ok {
		return
	}

	c.logger.Debug("looking up results", "file", file.Label, "contract", group.Label, "test", n.Label, "path", file.Path)
	outcome, ok := Match(results.Lookup(file.Label, group.Label, n.Label), file.Path)
	if !ok {
		c.logger.Debug("did not find test result", "id", id)
		return
	}

	ev := domain.Event{NodeID: id, Kind: n.Kind, Duration: duration}
	if outcome.Failed {
		ev.Type = domain.EventFailed
		ev.Message = outcome.FailMessage
		if outcome.FailMessage != "" && n.Range != nil {
			ev.Location = &domain.Location{Path: n.Path, Range: *n.Range}
		}
	} else {
		ev.Type = domain.EventPassed
	}
	rep.Report(ev)
}

// Match returns the first outcome whose display path is a path suffix of location
func Match(outcomes []domain.Outcome, location string) (domain.Outcome, bool) {
	location = filepath.ToSlash(location)
	for _, o := range outcomes {
		if hasPathSuffix(location, o.DisplayPath) {
			return o, true
		}
	}
	return domain.Outcome{}, false
}

func hasPathSuffix(location, displayPath string) bool {
	displayPath = strings.TrimPrefix(filepath.ToSlash(displayPath), "./")
	if displayPath == "" {
		return false
	}
	return location == displayPath || strings.HasSuffix(location, "/"+displayPath)
}
