package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Error code constants
const (
	CapabilityNotFound = "CAPABILITY_NOT_FOUND"
	ValidationFailed   = "VALIDATION_FAILED"
	CriticalError      = "CRITICAL_ERROR"
	PartialFailure     = "PARTIAL_FAILURE"
	NotAuthenticated   = "NOT_AUTHENTICATED"
	Timeout            = "TIMEOUT"
	Cancelled          = "CANCELLED"
)

// Severity ranks how badly a failure affects the plan.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RunError is a structured error for agent and UI consumption.
type RunError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Severity    Severity       `json:"severity"`
	Recoverable bool           `json:"recoverable"`
	Capability  string         `json:"capability,omitempty"`
	StepOrder   int            `json:"step_order,omitempty"`
	Hint        string         `json:"hint,omitempty"`
	Details     map[string]any `json:"details,omitempty"`

	cause error
}

func (e *RunError) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("[%s] capability %s: %s", e.Code, e.Capability, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RunError) Unwrap() error { return e.cause }

// For returns a copy of e attributed to the named capability.
func (e *RunError) For(capability string) *RunError {
	c := *e
	c.Capability = capability
	return &c
}

// NewNotFound reports a registry miss.
func NewNotFound(name string) *RunError {
	return &RunError{
		Code:       CapabilityNotFound,
		Message:    fmt.Sprintf("capability %q is not registered", name),
		Severity:   SeverityCritical,
		Capability: name,
		Hint:       "Run `capflow capabilities` to list registered capabilities",
	}
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Code: ValidationFailed, Message: msg, Severity: SeverityHigh, Recoverable: true, Hint: hint}
}

// NewCritical wraps an unexpected failure inside a capability.
func NewCritical(err error) *RunError {
	msg := "unexpected failure"
	if err != nil {
		msg = err.Error()
	}
	return &RunError{Code: CriticalError, Message: msg, Severity: SeverityCritical, cause: err}
}

// NewPartialFailure reports a batch where only some items succeeded.
func NewPartialFailure(succeeded, failed int, msg string) *RunError {
	return &RunError{
		Code:        PartialFailure,
		Message:     msg,
		Severity:    SeverityMedium,
		Recoverable: true,
		Details:     map[string]any{"succeeded": succeeded, "failed": failed},
	}
}

func NewNotAuthenticated(msg string) *RunError {
	return &RunError{
		Code:        NotAuthenticated,
		Message:     msg,
		Severity:    SeverityHigh,
		Recoverable: true,
		Hint:        "Provide an owner id (--owner) and re-run",
	}
}

func NewTimeout(msg string, err error) *RunError {
	return &RunError{Code: Timeout, Message: msg, Severity: SeverityHigh, Recoverable: true, cause: err}
}

func NewCancelled(err error) *RunError {
	return &RunError{Code: Cancelled, Message: "execution cancelled", Severity: SeverityCritical, cause: err}
}

// As extracts a *RunError from an error chain.
func As(err error) (*RunError, bool) {
	var re *RunError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// From converts any error into a RunError, keeping existing codes.
func From(err error) *RunError {
	if err == nil {
		return nil
	}
	if re, ok := As(err); ok {
		return re
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(err.Error(), err)
	}
	return NewCritical(err)
}
