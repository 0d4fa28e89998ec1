package model

import "time"

// RunResult is the outcome of one go test invocation for a package.
type RunResult struct {
	Package  *Package
	Tests    []string // selected test names run by this invocation
	Args     []string // extra go test flags
	Output   string
	Passed   bool
	Duration time.Duration
	Err      error
}

// Report summarizes a select or run invocation.
type Report struct {
	RunID        string
	Selection    Selection
	Instrumented []Path
	Results      []RunResult
	Restored     []Path
}

// Passed reports whether every go test invocation succeeded.
func (r Report) Passed() bool {
	for _, result := range r.Results {
		if !result.Passed {
			return false
		}
	}

	return true
}

// Failed returns the results of failing invocations.
func (r Report) Failed() []RunResult {
	var failed []RunResult

	for _, result := range r.Results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}

	return failed
}

// UnitReport describes one unit for the list command.
type UnitReport struct {
	ID          string
	Kind        UnitKind
	Package     string
	File        string
	Fingerprint string
	Text        string `json:",omitempty" yaml:",omitempty"` // serialization, when requested
}

// TestReport describes one discovered test for the list command.
type TestReport struct {
	Name         string
	Package      string
	Selected     bool
	LastRun      bool     // selected by the last select or run
	Reason       string   `json:",omitempty" yaml:",omitempty"`
	Unit         string   `json:",omitempty" yaml:",omitempty"`
	Dependencies []string `json:",omitempty" yaml:",omitempty"`
}

// Listing is the result of the list command.
type Listing struct {
	Units []UnitReport
	Tests []TestReport
}
