package domain

import "time"

// Outcome is one result line reported by forge for a test
type Outcome struct {
	Failed      bool
	FailMessage string // reason text, only meaningful when Failed is set
	DisplayPath string // path as printed by forge, relative to an unknown base
}

// ResultTable maps file name -> contract name -> test name -> outcomes in report order
type ResultTable map[string]map[string]map[string][]Outcome

// Add appends an outcome under (file, group, name)
func (t ResultTable) Add(file, group, name string, o Outcome) {
	groups, ok := t[file]
	if !ok {
		groups = make(map[string]map[string][]Outcome)
		t[file] = groups
	}
	cases, ok := groups[group]
	if !ok {
		cases = make(map[string][]Outcome)
		groups[group] = cases
	}
	cases[name] = append(cases[name], o)
}

// Lookup returns the outcomes recorded for (file, group, name)
func (t ResultTable) Lookup(file, group, name string) []Outcome {
	return t[file][group][name]
}

// Len returns the number of outcomes in the table
func (t ResultTable) Len() int {
	n := 0
	for _, groups := range t {
		for _, cases := range groups {
			for _, outcomes := range cases {
				n += len(outcomes)
			}
		}
	}
	return n
}

// ExecResult is the captured output of a single forge invocation
type ExecResult struct {
	Command  []string
	Dir      string
	Stdout   string
	Stderr   string
	ExitCode int
	Signaled bool // process was terminated by a signal; output may be partial
	Duration time.Duration
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	RunID           string  `json:"run_id"`
	ProjectPath     string  `json:"project_path"`
	Selected        int     `json:"selected"`
	PassedTests     int     `json:"passed_tests"`
	FailedTests     int     `json:"failed_tests"`
	SkippedNodes    int     `json:"skipped_nodes"`
	ErroredNodes    int     `json:"errored_nodes"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
	Passed  []string        `json:"passed,omitempty"`
}
