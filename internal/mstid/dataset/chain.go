package dataset

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mstid/internal/timeutil"
)

// Level is the severity of a history entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// HistoryEntry records one transformation or notable event of a run.
type HistoryEntry struct {
	Seq     int                    `json:"seq"`
	Stage   string                 `json:"stage"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Level   Level                  `json:"level"`
	Message string                 `json:"message,omitempty"`
	At      time.Time              `json:"at"`
}

// Chain holds the snapshots of a single analysis run in publication order,
// tracks which one is active (the input to the next stage), and keeps an
// append-only history log.
//
// A Chain is owned by one run and is not safe for concurrent use.
type Chain struct {
	RunID string

	clock     timeutil.Clock
	snapshots map[string]*Snapshot
	order     []string
	active    string
	history   []HistoryEntry
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock sets the clock used to timestamp history entries.
func WithClock(c timeutil.Clock) Option {
	return func(ch *Chain) { ch.clock = c }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(ch *Chain) { ch.RunID = id }
}

// NewChain starts a chain with initial as its first, active snapshot.
func NewChain(initial *Snapshot, opts ...Option) (*Chain, error) {
	ch := &Chain{
		RunID:     uuid.New().String(),
		clock:     timeutil.RealClock{},
		snapshots: make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(ch)
	}
	if initial == nil {
		return nil, fmt.Errorf("initial snapshot is nil")
	}
	if err := ch.Publish(initial, map[string]interface{}{
		"radar":     initial.Meta.Radar,
		"parameter": initial.Meta.Parameter,
	}); err != nil {
		return nil, err
	}
	return ch, nil
}

// Publish stores a deep copy of snap under snap.Name, appends a history
// entry with params and makes it the active snapshot. Names are unique
// within a chain.
func (ch *Chain) Publish(snap *Snapshot, params map[string]interface{}) error {
	if snap == nil {
		return fmt.Errorf("publish: snapshot is nil")
	}
	if snap.Name == "" {
		return fmt.Errorf("publish: snapshot has no name")
	}
	if _, exists := ch.snapshots[snap.Name]; exists {
		return fmt.Errorf("publish: snapshot %q already exists", snap.Name)
	}
	ch.snapshots[snap.Name] = snap.Clone()
	ch.order = append(ch.order, snap.Name)
	ch.active = snap.Name
	ch.append(snap.Name, LevelInfo, "", params)
	return nil
}

// Log appends an informational entry for a stage that does not produce a
// snapshot (spectral estimation, mapping, detection).
func (ch *Chain) Log(stage string, params map[string]interface{}) {
	ch.append(stage, LevelInfo, "", params)
}

// Warn appends a warning entry. Warnings never stop a run.
func (ch *Chain) Warn(stage, message string, params map[string]interface{}) {
	ch.append(stage, LevelWarning, message, params)
}

func (ch *Chain) append(stage string, level Level, message string, params map[string]interface{}) {
	ch.history = append(ch.history, HistoryEntry{
		Seq:     len(ch.history),
		Stage:   stage,
		Params:  copyParams(params),
		Level:   level,
		Message: message,
		At:      ch.clock.Now(),
	})
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Get returns the snapshot published under name. The returned snapshot
// belongs to the chain; callers must Derive or Clone before modifying it.
func (ch *Chain) Get(name string) (*Snapshot, bool) {
	s, ok := ch.snapshots[name]
	return s, ok
}

// Active returns the active snapshot.
func (ch *Chain) Active() *Snapshot {
	return ch.snapshots[ch.active]
}

// ActiveName returns the name of the active snapshot.
func (ch *Chain) ActiveName() string {
	return ch.active
}

// SetActive selects an earlier snapshot as the input to the next stage.
func (ch *Chain) SetActive(name string) error {
	if _, ok := ch.snapshots[name]; !ok {
		return fmt.Errorf("set active: no snapshot named %q", name)
	}
	ch.active = name
	return nil
}

// Names returns snapshot names in publication order.
func (ch *Chain) Names() []string {
	return append([]string(nil), ch.order...)
}

// History returns a copy of the log.
func (ch *Chain) History() []HistoryEntry {
	out := make([]HistoryEntry, len(ch.history))
	for i, e := range ch.history {
		e.Params = copyParams(e.Params)
		out[i] = e
	}
	return out
}

// Warnings returns only the warning entries of the log.
func (ch *Chain) Warnings() []HistoryEntry {
	var out []HistoryEntry
	for _, e := range ch.History() {
		if e.Level == LevelWarning {
			out = append(out, e)
		}
	}
	return out
}
