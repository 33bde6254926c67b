// Package model defines the domain types shared by the za7z packages.
package model

import (
	"time"
)

// Mode selects what a batch run does with each resolved file.
type Mode string

const (
	ModeCompress Mode = "compress"
	ModeExtract  Mode = "extract"
)

// Verb returns the progressive verb used in operator messages.
func (m Mode) Verb() string {
	if m == ModeExtract {
		return "Extracting"
	}
	return "Compressing"
}

// State is a session state. A run moves forward through the states in the
// order they are declared here, or jumps to StateAborted.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingPassword State = "awaiting_password"
	StateResolvingTargets State = "resolving_targets"
	StateConfirmingBatch  State = "confirming_batch"
	StateProcessingItems  State = "processing_items"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Outcome is the result of the archiver call for one item.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ItemRecord is the batch operation record for a single resolved file.
type ItemRecord struct {
	Index       int
	InputPath   string
	OutputPath  string
	Outcome     Outcome
	Error       string
	Deleted     bool
	DeleteError string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// BatchSummary groups the records of one run.
type BatchSummary struct {
	RunID      string
	Mode       Mode
	Targets    []string
	Items      []*ItemRecord
	Skipped    []string
	Unchanged  []string
	StartedAt  time.Time
	FinishedAt time.Time
	FinalState State
}

// Succeeded returns the number of items whose archiver call succeeded.
func (b *BatchSummary) Succeeded() int {
	n := 0
	for _, it := range b.Items {
		if it.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of items whose archiver call failed.
func (b *BatchSummary) Failed() int {
	n := 0
	for _, it := range b.Items {
		if it.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// Deleted returns the number of sources removed after success.
func (b *BatchSummary) Deleted() int {
	n := 0
	for _, it := range b.Items {
		if it.Deleted {
			n++
		}
	}
	return n
}

// DeleteWarnings returns the number of items whose source could not be removed.
func (b *BatchSummary) DeleteWarnings() int {
	n := 0
	for _, it := range b.Items {
		if it.DeleteError != "" {
			n++
		}
	}
	return n
}

// RunEntry is one row of the run journal as shown by --history.
type RunEntry struct {
	RunID      string
	Mode       Mode
	Targets    string
	State      State
	Total      int
	Succeeded  int
	Failed     int
	Deleted    int
	StartedAt  time.Time
	FinishedAt time.Time
}
