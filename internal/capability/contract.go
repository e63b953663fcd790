// Package capability defines the contract every unit of work honours, the
// registry that maps names to implementations, and the Results Channel that
// carries outputs between steps.
package capability

import (
	"context"
	"fmt"
	"time"

	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
)

// Well-known context keys placed in Input.Context by the executor.
const (
	KeyExecutionID = "execution_id"
	KeyOwnerID     = "owner_id"
	KeyObjective   = "objective"
	KeyWorkDir     = "work_dir"
)

// Input is built fresh for every invocation.
type Input struct {
	CapabilityID    string         `json:"capability_id"`
	ExecutionID     string         `json:"execution_id"`
	Context         map[string]any `json:"context"`
	PreviousResults *Results       `json:"-"`
}

// Metadata describes how an output was produced.
type Metadata struct {
	DurationMs int64  `json:"duration_ms"`
	RetryCount int    `json:"retry_count"`
	DataSource string `json:"data_source,omitempty"`
}

// Output is the standardised result of an invocation. Success=false implies
// Error != nil.
type Output struct {
	Success          bool                `json:"success"`
	CapabilityID     string              `json:"capability_id"`
	ExecutionID      string              `json:"execution_id"`
	Timestamp        time.Time           `json:"timestamp"`
	Data             any                 `json:"data"`
	Error            *caperrors.RunError `json:"error,omitempty"`
	DebugLog         []journal.Entry     `json:"debug_log,omitempty"`
	DataConfirmation *DataConfirmation   `json:"data_confirmation,omitempty"`
	Metadata         Metadata            `json:"metadata"`
}

// Capability is a named, independently invokable unit of work. Expected
// failures are reported through Output.Error; a returned error or a panic is
// treated as an unexpected failure.
type Capability interface {
	Execute(ctx context.Context, in *Input) (*Output, error)
}

// Func adapts a function to Capability.
type Func func(ctx context.Context, in *Input) (*Output, error)

func (f Func) Execute(ctx context.Context, in *Input) (*Output, error) { return f(ctx, in) }

// Succeed returns a successful output carrying data.
func Succeed(in *Input, data any) *Output {
	return &Output{
		Success:      true,
		CapabilityID: in.CapabilityID,
		ExecutionID:  in.ExecutionID,
		Timestamp:    time.Now(),
		Data:         data,
	}
}

// Fail returns a failed output carrying err.
func Fail(in *Input, err *caperrors.RunError) *Output {
	return &Output{
		Success:      false,
		CapabilityID: in.CapabilityID,
		ExecutionID:  in.ExecutionID,
		Timestamp:    time.Now(),
		Error:        err,
	}
}

// WithConfirmation attaches a data confirmation and returns o.
func (o *Output) WithConfirmation(c *DataConfirmation) *Output {
	o.DataConfirmation = c
	return o
}

// WithSource records where the data came from.
func (o *Output) WithSource(source string) *Output {
	o.Metadata.DataSource = source
	return o
}

// Debug appends a narrated debug entry.
func (o *Output) Debug(t journal.EntryType, format string, args ...any) *Output {
	o.DebugLog = append(o.DebugLog, journal.Entry{
		Timestamp: time.Now(),
		Type:      t,
		Narrative: fmt.Sprintf(format, args...),
		Severity:  journal.SeverityLow,
	})
	return o
}

// String returns the named context value as a string, or "".
func (in *Input) String(key string) string {
	v, ok := in.Context[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the named context value as an int, or def when absent or not
// numeric.
func (in *Input) Int(key string, def int) int {
	switch v := in.Context[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
