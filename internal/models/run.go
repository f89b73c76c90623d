package models

import (
	"time"
)

// ResultKind classifies the terminal outcome of a batch run (or of a
// single text inside one). Every outcome is captured as data; nothing
// crosses the run boundary as an exception.
type ResultKind string

const (
	ResultSuccess         ResultKind = "success"
	ResultNothingToDo     ResultKind = "nothing_to_do"
	ResultAlreadyRunning  ResultKind = "already_running"
	ResultStaleProcessing ResultKind = "stale_processing"
	ResultQuotaDeferred   ResultKind = "quota_deferred"
	ResultAPIError        ResultKind = "api_error"
	ResultSpliceMismatch  ResultKind = "splice_mismatch"
)

// RunResult is the payload stored against an object's run hash and
// polled by callers. Hard errors and notices both land here.
type RunResult struct {
	Kind     ResultKind `json:"kind"`
	Message  string     `json:"message"`
	Produced int        `json:"produced,omitempty"` // texts that triggered a new API call
	Replaced int        `json:"replaced,omitempty"` // texts spliced into content
	// StaleTextIDs lists records stuck in processing when the run was
	// blocked; the operator resolves them via the recovery endpoint.
	StaleTextIDs []int64   `json:"stale_text_ids,omitempty"`
	At           time.Time `json:"at"`
}

// RunMarker is the persisted per-object run state: a compare-and-swap
// lock slot plus progress counters and the last result payload.
type RunMarker struct {
	ObjectHash string     `json:"object_hash" db:"object_hash"`
	RunningAt  int64      `json:"running_at" db:"running_at"` // unix seconds, 0 = idle
	Max        int        `json:"max" db:"max_count"`
	Count      int        `json:"count" db:"count"`
	Result     *RunResult `json:"result,omitempty" db:"result"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRunning reports whether a run is in flight for the marker
func (m *RunMarker) IsRunning() bool {
	return m != nil && m.RunningAt > 0
}

// Progress is the caller-facing view of a run marker
type Progress struct {
	Count      int        `json:"count"`
	Max        int        `json:"max"`
	Running    bool       `json:"running"`
	LastResult *RunResult `json:"last_result,omitempty"`
}
