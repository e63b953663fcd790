package engine

import (
	"fmt"
	"strings"

	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/stevehiehn/capflow/internal/plan"
)

// PlanStatus is the overall state of an execution.
type PlanStatus string

const (
	PlanRunning               PlanStatus = "running"
	PlanCompleted             PlanStatus = "completed"
	PlanCompletedWithWarnings PlanStatus = "completed_with_warnings"
	PlanError                 PlanStatus = "error"
)

// Step outcomes reported in StepResult.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeBlocked   = "blocked"
	OutcomePartial   = "partial" // some calls ran, others were held by the gate
	OutcomeNotRun    = "not_run"
)

// Result is the structured output of a plan execution.
type Result struct {
	ExecutionID string                        `json:"execution_id"`
	PlanID      string                        `json:"plan_id"`
	Objective   string                        `json:"objective"`
	Status      PlanStatus                    `json:"status"`
	FailedStep  int                           `json:"failed_step,omitempty"`
	Steps       []StepResult                  `json:"steps"`
	Injected    []InjectedStep                `json:"injected,omitempty"`
	Errors      []caperrors.RunError          `json:"errors,omitempty"`
	Warnings    []caperrors.RunError          `json:"warnings,omitempty"`
	Outputs     map[string]*capability.Output `json:"outputs,omitempty"`
	Artifacts   []string                      `json:"artifacts,omitempty"`
	Duration    string                        `json:"duration,omitempty"`

	// Journal is this execution's Observability Log in arrival order.
	Journal []journal.Record `json:"journal,omitempty"`

	// Plan is the final, possibly mutated, plan.
	Plan *plan.ExecutionPlan `json:"-"`
}

// StepResult describes the outcome of a single step.
type StepResult struct {
	Order        int             `json:"order"`
	Title        string          `json:"title"`
	Status       plan.StepStatus `json:"status"`
	Outcome      string          `json:"outcome"`
	AutoInjected bool            `json:"auto_injected,omitempty"`
	BlockedBy    []string        `json:"blocked_by,omitempty"`
	Calls        []CallResult    `json:"calls"`
}

// CallResult describes the outcome of one capability call.
type CallResult struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     plan.StepStatus `json:"status"`
	Success    bool            `json:"success"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Confirmed  *bool           `json:"confirmed,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// InjectedStep records one replanning splice.
type InjectedStep struct {
	Order      int    `json:"order"`
	AfterOrder int    `json:"after_order"`
	Capability string `json:"capability"`
	Trigger    string `json:"trigger"`
}

// Succeeded reports whether the plan ran to the end.
func (r *Result) Succeeded() bool {
	return r.Status == PlanCompleted || r.Status == PlanCompletedWithWarnings
}

// Step returns the result for the step with the given order.
func (r *Result) Step(order int) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Order == order {
			return s, true
		}
	}
	return StepResult{}, false
}

// Summary explains the outcome in plain language.
func (r *Result) Summary() string {
	var b strings.Builder
	ran := 0
	for _, s := range r.Steps {
		switch s.Outcome {
		case OutcomeCompleted, OutcomeError, OutcomePartial:
			ran++
		}
	}
	switch r.Status {
	case PlanCompleted:
		fmt.Fprintf(&b, "Completed %q: %d of %d steps ran.", r.Objective, ran, len(r.Steps))
	case PlanCompletedWithWarnings:
		fmt.Fprintf(&b, "Completed %q with warnings: %d of %d steps ran.", r.Objective, ran, len(r.Steps))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, " %s", sentence(w))
		}
	case PlanError:
		title := ""
		if s, ok := r.Step(r.FailedStep); ok {
			title = s.Title
		}
		fmt.Fprintf(&b, "Stopped %q at step %d (%s).", r.Objective, r.FailedStep, title)
		for _, e := range r.Errors {
			fmt.Fprintf(&b, " %s", sentence(e))
		}
		if n := len(r.Steps) - r.FailedStep; n > 0 {
			fmt.Fprintf(&b, " %d later step(s) were not run.", n)
		}
	default:
		fmt.Fprintf(&b, "Plan %q is %s.", r.Objective, r.Status)
	}
	if len(r.Injected) > 0 {
		fmt.Fprintf(&b, " %d step(s) were added automatically.", len(r.Injected))
	}
	return b.String()
}

func sentence(e caperrors.RunError) string {
	msg := e.Message
	if e.Capability != "" {
		msg = e.Capability + ": " + msg
	}
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
