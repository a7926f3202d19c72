// Package report collects validation results and renders them.
package report

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies why a case failed.
type Kind string

const (
	KindNone       Kind = ""
	KindNavigation Kind = "navigation"
	KindTimeout    Kind = "timeout"
	KindMismatch   Kind = "mismatch"
	KindOther      Kind = "other"
)

// Result is the outcome of validating one locale case.
type Result struct {
	Locale      string        `json:"locale" yaml:"locale" db:"locale"`
	URL         string        `json:"url" yaml:"url" db:"url"`
	Expected    string        `json:"expected_title" yaml:"expected_title" db:"expected_title"`
	ActualTitle string        `json:"actual_title" yaml:"actual_title" db:"actual_title"`
	Passed      bool          `json:"passed" yaml:"passed" db:"passed"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty" db:"error"`
	Kind        Kind          `json:"kind,omitempty" yaml:"kind,omitempty" db:"kind"`
	Screenshot  string        `json:"screenshot,omitempty" yaml:"screenshot,omitempty" db:"screenshot"`
	Duration    time.Duration `json:"duration" yaml:"duration" db:"duration_ns"`
	CheckedAt   time.Time     `json:"checked_at" yaml:"checked_at" db:"checked_at"`
}

// Report is the outcome of one run over the fixture table.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Engine     string    `json:"engine" yaml:"engine"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Results    []Result  `json:"results" yaml:"results"`
}

// New starts a report for a run on engine.
func New(engine string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Engine:    engine,
		StartedAt: time.Now().UTC(),
		Results:   []Result{},
	}
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Finish stamps the end of the run.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts returns the number of passed and failed results.
func (r *Report) Counts() (passed, failed int) {
	for _, res := range r.Results {
		if res.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Passed reports whether the run validated at least one case and every
// case passed.
func (r *Report) Passed() bool {
	if r == nil || len(r.Results) == 0 {
		return false
	}
	_, failed := r.Counts()
	return failed == 0
}

// Failures returns the failed results in run order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}
