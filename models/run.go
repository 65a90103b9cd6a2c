package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Classification is the novelty of an extracted listing relative to the
// store: not seen before, seen with different mutable fields, or identical.
type Classification int

const (
	ClassNew Classification = iota
	ClassUpdated
	ClassUnchanged
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// AreaReport holds the per-area counts surfaced in the run summary.
type AreaReport struct {
	Area        string   `json:"area"`
	Found       int      `json:"found"`
	FilteredOut int      `json:"filtered_out"`
	Duplicates  int      `json:"duplicates"`
	New         int      `json:"new"`
	Updated     int      `json:"updated"`
	Unchanged   int      `json:"unchanged"`
	Notified    int      `json:"notified"`
	Errors      []string `json:"errors,omitempty"`
}

type RunReport struct {
	RunID      uuid.UUID    `json:"run_id"`
	DryRun     bool         `json:"dry_run"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at"`
	Status     RunStatus    `json:"status"`
	Areas      []AreaReport `json:"areas"`
}

func (r *RunReport) Totals() AreaReport {
	t := AreaReport{Area: "total"}
	for _, a := range r.Areas {
		t.Found += a.Found
		t.FilteredOut += a.FilteredOut
		t.Duplicates += a.Duplicates
		t.New += a.New
		t.Updated += a.Updated
		t.Unchanged += a.Unchanged
		t.Notified += a.Notified
		t.Errors = append(t.Errors, a.Errors...)
	}
	return t
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
