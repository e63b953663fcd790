// Package journal records the per-capability narrated timeline of an
// execution. It is write-only from the executor's point of view: nothing in
// here feeds back into control flow.
package journal

import (
	"sync"
	"time"
)

// EntryType categorises a narrated entry.
type EntryType string

const (
	TypeInfo         EntryType = "info"
	TypeAction       EntryType = "action"
	TypeDecision     EntryType = "decision"
	TypeDiscovery    EntryType = "discovery"
	TypeError        EntryType = "error"
	TypeWarning      EntryType = "warning"
	TypeConfirmation EntryType = "confirmation"
)

// Severity of an entry.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Entry is one narrated event.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	Type          EntryType      `json:"type"`
	Narrative     string         `json:"narrative"`
	Severity      Severity       `json:"severity"`
	TechnicalData map[string]any `json:"technical_data,omitempty"`
}

// Sink receives entries. Reset is called at the start of every execution.
type Sink interface {
	Reset(executionID string)
	Append(capability string, e Entry)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Reset(string)         {}
func (Nop) Append(string, Entry) {}

type timelineEntry struct {
	capability string
	entry      Entry
}

// Log is an in-memory Sink keeping entries per capability in arrival order.
type Log struct {
	mu          sync.RWMutex
	executionID string
	byName      map[string][]Entry
	order       []string
	timeline    []timelineEntry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{byName: map[string][]Entry{}}
}

// Reset clears all entries and starts a new execution.
func (l *Log) Reset(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.executionID = executionID
	l.byName = map[string][]Entry{}
	l.order = nil
	l.timeline = nil
}

// Append adds an entry for capability. A zero timestamp is set to now and an
// empty severity to low.
func (l *Log) Append(capability string, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byName[capability]; !ok {
		l.order = append(l.order, capability)
	}
	l.byName[capability] = append(l.byName[capability], e)
	l.timeline = append(l.timeline, timelineEntry{capability: capability, entry: e})
}

// ExecutionID returns the execution the log currently belongs to.
func (l *Log) ExecutionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.executionID
}

// Entries returns a copy of the entries recorded for capability.
func (l *Log) Entries(capability string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.byName[capability]...)
}

// Capabilities lists capability names in first-appearance order.
func (l *Log) Capabilities() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Record pairs an entry with the capability it belongs to.
type Record struct {
	Capability string `json:"capability"`
	Entry
}

// All returns every entry in arrival order.
func (l *Log) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.timeline))
	for i, te := range l.timeline {
		out[i] = Record{Capability: te.capability, Entry: te.entry}
	}
	return out
}

// Count returns entries of type t recorded for capability.
func (l *Log) Count(capability string, t EntryType) int {
	n := 0
	for _, e := range l.Entries(capability) {
		if e.Type == t {
			n++
		}
	}
	return n
}
