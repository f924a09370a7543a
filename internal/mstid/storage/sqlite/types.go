package sqlite

import (
	"encoding/json"
	"errors"
	"time"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned by reads for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted analysis run.
type Run struct {
	RunID        string          `json:"run_id"`
	Radar        string          `json:"radar"`
	Parameter    string          `json:"parameter"`
	ScatterModel string          `json:"scatter_model"`
	WindowStart  time.Time       `json:"window_start"`
	WindowEnd    time.Time       `json:"window_end"`
	Combine      string          `json:"combine"`
	NumSignals   int             `json:"num_signals"`
	ParamsJSON   json.RawMessage `json:"params_json,omitempty"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	SignalCount  int             `json:"signal_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// storedIssue is the JSON form of an excluded bin. Kind is kept by name so
// the column stays readable outside Go.
type storedIssue struct {
	Index  int     `json:"index"`
	FreqHz float64 `json:"freq_hz"`
	Kind   string  `json:"kind"`
	Reason string  `json:"reason"`
}
