package ui

import (
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"ftr/internal/domain"
)

// ConsoleReporter prints run events to a terminal.
// With a transcript every event is printed as it happens; otherwise only a
// progress bar over the queued nodes is shown.
type ConsoleReporter struct {
	mu         sync.Mutex
	out        io.Writer
	transcript bool
	progress   bool
	bar        *ProgressBar
	passed     int
	failed     int
}

// NewConsoleReporter creates a new ConsoleReporter
func NewConsoleReporter(out io.Writer, transcript, progress bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, transcript: transcript, progress: progress}
}

// Report implements domain.Reporter
func (r *ConsoleReporter) Report(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case domain.EventDiscoveryStarted:
		r.printf(color.New(color.FgCyan), "Discovering tests in %s\n", ev.Message)
	case domain.EventRunStarted:
		if r.progress && !r.transcript && len(ev.IDs) > 0 {
			r.bar = NewProgressBar(len(ev.IDs), "Running tests")
		}
	case domain.EventPassed:
		r.passed++
		r.printf(color.New(color.FgGreen), "✓ %s (%s)\n", ev.NodeID, ev.Duration.Round(time.Millisecond))
	case domain.EventFailed:
		r.failed++
		if ev.Message != "" {
			r.printf(color.New(color.FgRed), "✗ %s: %s\n", ev.NodeID, ev.Message)
		} else {
			r.printf(color.New(color.FgRed), "✗ %s\n", ev.NodeID)
		}
	case domain.EventSkipped:
		if ev.Message != "" {
			r.printf(color.New(color.FgYellow), "- %s skipped: %s\n", ev.NodeID, ev.Message)
		} else {
			r.printf(color.New(color.FgYellow), "- %s skipped\n", ev.NodeID)
		}
	case domain.EventErrored:
		r.printf(color.New(color.FgRed, color.Bold), "! %s: %s\n", ev.NodeID, ev.Message)
	case domain.EventOutput:
		r.printf(color.New(color.Reset), "%s\n", ev.Message)
		if r.bar != nil && ev.Message == "Completed "+ev.NodeID {
			_ = r.bar.Add(1)
			r.bar.Update(r.passed, r.failed)
		}
	case domain.EventRunFinished:
		if r.bar != nil {
			r.bar.Finish()
			r.bar = nil
		}
	}
}

func (r *ConsoleReporter) printf(c *color.Color, format string, args ...any) {
	if !r.transcript {
		return
	}
	_, _ = c.Fprintf(r.out, format, args...)
}

var _ domain.Reporter = (*ConsoleReporter)(nil)
