// Package progress carries fire-and-forget execution events to presentation
// layers.
package progress

import (
	"log/slog"
	"time"
)

// EventType identifies a transition in an execution.
type EventType string

const (
	EventPlanStarted         EventType = "plan_started"
	EventStepStarted         EventType = "step_started"
	EventStepBlocked         EventType = "step_blocked"
	EventCapabilityCompleted EventType = "capability_completed"
	EventCapabilityFailed    EventType = "capability_failed"
	EventStepCompleted       EventType = "step_completed"
	EventPlanMutated         EventType = "plan_mutated"
	EventPlanCompleted       EventType = "plan_completed"
	EventPlanFailed          EventType = "plan_failed"
)

// Event is a structured progress message.
type Event struct {
	Type         EventType      `json:"type"`
	ExecutionID  string         `json:"execution_id"`
	CapabilityID string         `json:"capability_id,omitempty"`
	Capability   string         `json:"capability,omitempty"`
	StepOrder    int            `json:"step_order,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Sink receives events. Implementations must not block the caller for long
// and must not panic; delivery failures are their own concern.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Nop discards events.
type Nop struct{}

func (Nop) Emit(Event) {}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes events to a structured logger at debug level.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(e Event) {
	attrs := []any{"execution_id", e.ExecutionID}
	if e.Capability != "" {
		attrs = append(attrs, "capability", e.Capability)
	}
	if e.StepOrder > 0 {
		attrs = append(attrs, "step", e.StepOrder)
	}
	for k, v := range e.Payload {
		attrs = append(attrs, k, v)
	}
	s.logger.Debug(string(e.Type), attrs...)
}

// Recorder keeps every event in memory; handy for tests and the CLI summary.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Types lists recorded event types in order.
func (r *Recorder) Types() []EventType {
	out := make([]EventType, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
