package domain

import "time"

// EventType enumerates the notifications produced for the host UI
type EventType int

const (
	EventDiscoveryStarted EventType = iota
	EventDiscoveryFinished
	EventRunStarted
	EventEnqueued
	EventStarted
	EventPassed
	EventFailed
	EventSkipped
	EventErrored
	EventOutput
	EventRunFinished
)

var eventNames = map[EventType]string{
	EventDiscoveryStarted:  "discovery-started",
	EventDiscoveryFinished: "discovery-finished",
	EventRunStarted:        "run-started",
	EventEnqueued:          "enqueued",
	EventStarted:           "running",
	EventPassed:            "passed",
	EventFailed:            "failed",
	EventSkipped:           "skipped",
	EventErrored:           "errored",
	EventOutput:            "output",
	EventRunFinished:       "run-finished",
}

func (e EventType) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

// Location points at a span in a source file
type Location struct {
	Path  string
	Range Range
}

// Event is a single notification. Fields are set according to Type.
type Event struct {
	Type     EventType
	NodeID   string
	Kind     Kind
	IDs      []string  // run-started: selected ids; discovery-finished: top-level ids
	Message  string    // failed/errored reason, output text
	Location *Location // failed: where the failure is attached
	Duration time.Duration
}

// Reporter receives events from discovery and runs
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ev Event)

// Report calls f(ev)
func (f ReporterFunc) Report(ev Event) { f(ev) }

// MultiReporter fans events out to several reporters in order
func MultiReporter(reporters ...Reporter) Reporter {
	return ReporterFunc(func(ev Event) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ev)
			}
		}
	})
}
