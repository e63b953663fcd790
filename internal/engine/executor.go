// Package engine runs execution plans: one step at a time, one capability at
// a time, with a data confirmation gate between steps and replanning after
// them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/stevehiehn/capflow/internal/plan"
	"github.com/stevehiehn/capflow/internal/progress"
)

// ArtifactWriter persists per-run outputs.
type ArtifactWriter interface {
	WriteCapabilityOutput(name string, out *capability.Output) (string, error)
	WriteResult(result any) (string, error)
}

// ArtifactFactory opens an ArtifactWriter for one execution.
type ArtifactFactory func(executionID, workDir string) (ArtifactWriter, error)

// Executor drives plans against a capability registry.
type Executor struct {
	registry  *capability.Registry
	logger    *slog.Logger
	journal   journal.Sink
	progress  progress.Sink
	artifacts ArtifactFactory
	now       func() time.Time
	newID     func() string
}

// Option configures an Executor.
type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithJournal adds a sink that sees the entries of every execution. Each
// execution also keeps its own log, returned in Result.Journal.
func WithJournal(j journal.Sink) Option {
	return func(e *Executor) { e.journal = j }
}

func WithProgress(p progress.Sink) Option {
	return func(e *Executor) { e.progress = p }
}

// WithArtifacts enables per-run artifact output.
func WithArtifacts(f ArtifactFactory) Option {
	return func(e *Executor) { e.artifacts = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDs overrides the id generator used for injected steps.
func WithIDs(newID func() string) Option {
	return func(e *Executor) { e.newID = newID }
}

// New creates an Executor.
func New(reg *capability.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		logger:   slog.New(slog.DiscardHandler),
		journal:  journal.Nop{},
		progress: progress.Nop{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a plan to completion, to its first critical failure, or until
// ctx is cancelled. The caller's plan is not modified; Result.Plan holds the
// final copy. A non-nil error is returned only when the plan can't be
// started.
func (e *Executor) Execute(ctx context.Context, p *plan.ExecutionPlan, rc *RunContext) (*Result, error) {
	if p == nil {
		return nil, caperrors.NewValidationError("no plan given", "")
	}
	if rc == nil {
		rc = NewRunContext(".", nil, nil)
	}
	work := p.Clone()
	work.Normalize()
	rc.Inputs = work.ApplyDefaults(rc.Inputs)
	rc.TmplCtx.Inputs = rc.Inputs
	if err := plan.Validate(work, nil, rc.Inputs); err != nil {
		return nil, err
	}

	x := &execution{
		e:        e,
		rc:       rc,
		plan:     work,
		results:  capability.NewResults(),
		blocked:  map[string]bool{},
		injected: map[string]bool{},
		calls:    map[string]CallResult{},
		log:      journal.NewLog(),
		notes:    map[string]stepNote{},
		result: &Result{
			ExecutionID: rc.ExecutionID,
			PlanID:      work.ID,
			Objective:   work.Objective,
			Status:      PlanRunning,
		},
	}
	if e.artifacts != nil {
		w, err := e.artifacts(rc.ExecutionID, rc.WorkDir)
		if err != nil {
			e.logger.Warn("artifacts disabled", "execution", rc.ExecutionID, "err", err)
		} else {
			x.artifacts = w
		}
	}
	return x.run(ctx), nil
}

// stepNote records why a step did or didn't run.
type stepNote struct {
	outcome   string
	blockedBy []string
}

// execution is the state of one Execute call.
type execution struct {
	e         *Executor
	rc        *RunContext
	plan      *plan.ExecutionPlan
	results   *capability.Results
	blocked   map[string]bool // capabilities whose data may not flow onward
	injected  map[string]bool // trigger->companion pairs already spliced in
	calls     map[string]CallResult
	notes     map[string]stepNote
	result    *Result
	artifacts ArtifactWriter
	log       *journal.Log // this execution's Observability Log
	degraded  bool
}

// note appends to the execution's own log and fans out to the injected sink.
func (x *execution) note(capability string, en journal.Entry) {
	x.log.Append(capability, en)
	x.e.journal.Append(capability, en)
}

func (x *execution) run(ctx context.Context) *Result {
	e := x.e
	start := e.now()
	x.log.Reset(x.rc.ExecutionID)
	e.journal.Reset(x.rc.ExecutionID)

	ctx, span := startPlanSpan(ctx, x.rc.ExecutionID, x.plan.ID, len(x.plan.Steps))
	e.logger.Info("plan started", "execution", x.rc.ExecutionID, "objective", x.plan.Objective, "steps", len(x.plan.Steps))
	x.emit(progress.EventPlanStarted, 0, "", "", map[string]any{
		"objective": x.plan.Objective,
		"steps":     len(x.plan.Steps),
	})

	var abort *caperrors.RunError
	// The slice may grow while iterating.
	for i := 0; i < len(x.plan.Steps); i++ {
		step := &x.plan.Steps[i]
		if err := ctx.Err(); err != nil {
			abort = caperrors.NewCancelled(err)
			abort.StepOrder = step.Order
			break
		}
		if by := x.heldBy(step); len(by) > 0 {
			x.hold(step, by)
			continue
		}
		completed, err := x.runStep(ctx, step)
		if err != nil {
			abort = err
			break
		}
		x.replan(i, completed)
	}

	res := x.finish(abort, e.now().Sub(start))
	endPlanSpan(span, res.Status, len(x.plan.Steps), abortErr(abort))
	return res
}

func abortErr(re *caperrors.RunError) error {
	if re == nil {
		return nil
	}
	return re
}

// heldBy returns the blocked capabilities step depends on.
func (x *execution) heldBy(step *plan.Step) []string {
	var by []string
	seen := map[string]bool{}
	add := func(name string) {
		if x.blocked[name] && !seen[name] {
			seen[name] = true
			by = append(by, name)
		}
	}
	for _, d := range step.DependsOn {
		add(d)
	}
	for _, c := range step.Calls {
		if d, ok := x.e.registry.Descriptor(c.Name); ok {
			for _, r := range d.Requires {
				add(r)
			}
		}
	}
	return by
}

// hold leaves step pending and propagates the block to its capabilities.
func (x *execution) hold(step *plan.Step, by []string) {
	x.degraded = true
	x.notes[stepKey(step)] = stepNote{outcome: OutcomeBlocked, blockedBy: by}
	w := caperrors.NewValidationError(
		fmt.Sprintf("step %d (%s) held back: data from %v was not confirmed", step.Order, step.Title, by),
		"Review the failed data checks and re-run",
	)
	w.StepOrder = step.Order
	x.result.Warnings = append(x.result.Warnings, *w)
	for _, c := range step.Calls {
		x.blocked[c.Name] = true
		x.note(c.Name, journal.Entry{
			Timestamp: x.e.now(),
			Type:      journal.TypeWarning,
			Narrative: fmt.Sprintf("Skipped step %d because earlier data was not confirmed", step.Order),
			Severity:  journal.SeverityMedium,
			TechnicalData: map[string]any{
				"blocked_by": by,
			},
		})
	}
	x.e.logger.Warn("step held by data gate", "step", step.Order, "blocked_by", by)
	x.emit(progress.EventStepBlocked, step.Order, "", "", map[string]any{
		"title":      step.Title,
		"blocked_by": by,
	})
}

// runStep invokes each call of step in declared order. It returns the names
// of capabilities that completed with usable data, or a critical error.
func (x *execution) runStep(ctx context.Context, step *plan.Step) ([]string, *caperrors.RunError) {
	e := x.e
	step.Status = plan.StatusExecuting
	e.logger.Info("step started", "step", step.Order, "title", step.Title)
	x.emit(progress.EventStepStarted, step.Order, "", "", map[string]any{
		"title":         step.Title,
		"auto_injected": step.AutoInjected,
	})

	var completed, heldBy []string
	failed := false
	for j := range step.Calls {
		call := &step.Calls[j]
		desc, impl, err := e.registry.Lookup(call.Name)
		if err != nil {
			re := caperrors.From(err)
			re.StepOrder = step.Order
			call.Status = plan.StatusError
			x.calls[call.ID] = CallResult{ID: call.ID, Name: call.Name, Status: plan.StatusError, ErrorCode: re.Code}
			x.fail(step, call, re)
			return completed, re
		}
		if by := x.requiresBlocked(desc); len(by) > 0 {
			// Data gate within a step: the call stays pending.
			x.blocked[call.Name] = true
			x.degraded = true
			heldBy = appendMissing(heldBy, by...)
			w := caperrors.NewValidationError(
				fmt.Sprintf("%s in step %d held back: data from %v was not confirmed", call.Name, step.Order, by),
				"Review the failed data checks and re-run",
			).For(call.Name)
			w.StepOrder = step.Order
			x.result.Warnings = append(x.result.Warnings, *w)
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeWarning,
				Narrative: fmt.Sprintf("Not run: depends on unconfirmed data from %v", by),
				Severity:  journal.SeverityMedium,
			})
			continue
		}

		call.Status = plan.StatusExecuting
		out := x.invoke(ctx, step, call, desc, impl)
		x.results.Set(call.Name, out)
		x.record(call, out)
		x.writeArtifact(call.Name, out)

		if !out.Success {
			call.Status = plan.StatusError
			if desc.Critical {
				x.fail(step, call, out.Error)
				return completed, out.Error
			}
			failed = true
			x.degraded = true
			x.result.Warnings = append(x.result.Warnings, *out.Error)
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeError,
				Narrative: fmt.Sprintf("%s failed; continuing without it", desc.DisplayName),
				Severity:  journal.SeverityHigh,
				TechnicalData: map[string]any{
					"code":    out.Error.Code,
					"message": out.Error.Message,
				},
			})
			e.logger.Warn("capability failed", "capability", call.Name, "step", step.Order, "code", out.Error.Code, "err", out.Error.Message)
			x.emit(progress.EventCapabilityFailed, step.Order, call.ID, call.Name, map[string]any{
				"code":     out.Error.Code,
				"message":  out.Error.Message,
				"critical": false,
			})
			continue
		}

		call.Status = plan.StatusCompleted
		if out.Error != nil {
			// Partial success: keep going but surface the error.
			x.degraded = true
			x.result.Warnings = append(x.result.Warnings, *out.Error)
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeWarning,
				Narrative: out.Error.Message,
				Severity:  journal.SeverityMedium,
				TechnicalData: map[string]any{
					"code": out.Error.Code,
				},
			})
		}
		payload := map[string]any{"duration_ms": out.Metadata.DurationMs}
		if c := out.DataConfirmation; c != nil {
			payload["confirmed"] = c.Confirmed
			payload["summary"] = c.Summary
		}
		switch {
		case out.DataConfirmation.Blocking():
			x.blocked[call.Name] = true
			x.degraded = true
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeWarning,
				Narrative: fmt.Sprintf("%s finished but its data was not confirmed: %s", desc.DisplayName, out.DataConfirmation.Summary),
				Severity:  journal.SeverityHigh,
				TechnicalData: map[string]any{
					"checks": out.DataConfirmation.Checks,
				},
			})
			e.logger.Warn("data not confirmed", "capability", call.Name, "summary", out.DataConfirmation.Summary)
		case out.DataConfirmation != nil:
			delete(x.blocked, call.Name)
			completed = append(completed, call.Name)
			t := journal.TypeConfirmation
			if !out.DataConfirmation.Confirmed {
				t = journal.TypeWarning
			}
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      t,
				Narrative: fmt.Sprintf("%s: %s", desc.DisplayName, out.DataConfirmation.Summary),
			})
		default:
			delete(x.blocked, call.Name)
			completed = append(completed, call.Name)
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeInfo,
				Narrative: fmt.Sprintf("%s completed", desc.DisplayName),
			})
		}
		if out.Data == nil {
			x.note(call.Name, journal.Entry{
				Timestamp: e.now(),
				Type:      journal.TypeWarning,
				Narrative: fmt.Sprintf("%s reported success without data", desc.DisplayName),
				Severity:  journal.SeverityMedium,
			})
		}
		x.emit(progress.EventCapabilityCompleted, step.Order, call.ID, call.Name, payload)
	}

	step.Status = plan.StatusCompleted
	outcome := OutcomeCompleted
	switch {
	case failed:
		step.Status = plan.StatusError
		outcome = OutcomeError
	case len(heldBy) > 0:
		outcome = OutcomePartial
	}
	x.notes[stepKey(step)] = stepNote{outcome: outcome, blockedBy: heldBy}
	x.emit(progress.EventStepCompleted, step.Order, "", "", map[string]any{
		"status":  string(step.Status),
		"outcome": outcome,
	})
	return completed, nil
}

func appendMissing(list []string, names ...string) []string {
	for _, n := range names {
		if !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}

func (x *execution) requiresBlocked(d capability.Descriptor) []string {
	var by []string
	for _, r := range d.Requires {
		if x.blocked[r] {
			by = append(by, r)
		}
	}
	return by
}

// invoke runs one capability and always returns a normalised output.
func (x *execution) invoke(ctx context.Context, step *plan.Step, call *plan.CapabilityCall, desc capability.Descriptor, impl capability.Capability) *capability.Output {
	e := x.e
	in := &capability.Input{
		CapabilityID:    call.ID,
		ExecutionID:     x.rc.ExecutionID,
		Context:         map[string]any{},
		PreviousResults: x.results.Snapshot(),
	}
	for k, v := range x.rc.Session {
		in.Context[k] = v
	}
	for k, v := range x.rc.Inputs {
		in.Context[k] = v
	}
	in.Context[capability.KeyExecutionID] = x.rc.ExecutionID
	in.Context[capability.KeyObjective] = x.plan.Objective
	in.Context[capability.KeyWorkDir] = x.rc.WorkDir

	x.note(call.Name, journal.Entry{
		Timestamp: e.now(),
		Type:      journal.TypeAction,
		Narrative: fmt.Sprintf("Running %s for step %d: %s", desc.DisplayName, step.Order, step.Title),
	})

	ctx, span := startCapabilitySpan(ctx, call.Name, step.Order, desc.Critical)
	start := e.now()

	var out *capability.Output
	params, err := resolveParams(call.Parameters, x.rc)
	if err != nil {
		out = capability.Fail(in, caperrors.NewValidationError(err.Error(), "Check the {{...}} references in the step parameters"))
	} else {
		for k, v := range params {
			in.Context[k] = v
		}
		var callErr error
		out, callErr = safeExecute(ctx, impl, in)
		switch {
		case callErr != nil:
			e.logger.Error("capability threw", "capability", call.Name, "err", callErr)
			out = capability.Fail(in, caperrors.From(callErr))
		case out == nil:
			out = capability.Fail(in, caperrors.NewCritical(fmt.Errorf("returned no output")))
		case !out.Success && out.Error == nil:
			out.Error = caperrors.NewCritical(fmt.Errorf("reported failure without detail"))
		}
	}

	if out.CapabilityID == "" {
		out.CapabilityID = call.ID
	}
	if out.ExecutionID == "" {
		out.ExecutionID = x.rc.ExecutionID
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = e.now()
	}
	if out.Metadata.DurationMs == 0 {
		out.Metadata.DurationMs = e.now().Sub(start).Milliseconds()
	}
	if out.Error != nil {
		out.Error = out.Error.For(call.Name)
		out.Error.StepOrder = step.Order
	}
	for _, entry := range out.DebugLog {
		x.note(call.Name, entry)
	}
	code := ""
	if out.Error != nil {
		code = out.Error.Code
	}
	endCapabilitySpan(span, out.Success, code)
	return out
}

// safeExecute turns a panicking capability into an error.
func safeExecute(ctx context.Context, impl capability.Capability, in *capability.Input) (out *capability.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("capability panicked: %v", r)
		}
	}()
	return impl.Execute(ctx, in)
}

// fail records a critical abort at step.
func (x *execution) fail(step *plan.Step, call *plan.CapabilityCall, re *caperrors.RunError) {
	step.Status = plan.StatusError
	x.notes[stepKey(step)] = stepNote{outcome: OutcomeError}
	x.result.Errors = append(x.result.Errors, *re)
	x.result.FailedStep = step.Order
	x.note(call.Name, journal.Entry{
		Timestamp: x.e.now(),
		Type:      journal.TypeError,
		Narrative: fmt.Sprintf("Critical failure in step %d; stopping the plan", step.Order),
		Severity:  journal.SeverityCritical,
		TechnicalData: map[string]any{
			"code":    re.Code,
			"message": re.Message,
		},
	})
	x.e.logger.Error("critical capability failed", "capability", call.Name, "step", step.Order, "code", re.Code, "err", re.Message)
	x.emit(progress.EventCapabilityFailed, step.Order, call.ID, call.Name, map[string]any{
		"code":     re.Code,
		"message":  re.Message,
		"critical": true,
	})
}

func (x *execution) record(call *plan.CapabilityCall, out *capability.Output) {
	cr := CallResult{
		ID:         call.ID,
		Name:       call.Name,
		Status:     call.Status,
		Success:    out.Success,
		DurationMs: out.Metadata.DurationMs,
	}
	if out.Error != nil {
		cr.ErrorCode = out.Error.Code
	}
	if out.DataConfirmation != nil {
		confirmed := out.DataConfirmation.Confirmed
		cr.Confirmed = &confirmed
	}
	x.calls[call.ID] = cr
}

func (x *execution) writeArtifact(name string, out *capability.Output) {
	if x.artifacts == nil {
		return
	}
	path, err := x.artifacts.WriteCapabilityOutput(name, out)
	if err != nil {
		x.e.logger.Warn("write artifact", "capability", name, "err", err)
		return
	}
	x.result.Artifacts = append(x.result.Artifacts, path)
}

// finish assembles the Result.
func (x *execution) finish(abort *caperrors.RunError, elapsed time.Duration) *Result {
	res := x.result
	switch {
	case abort != nil:
		res.Status = PlanError
		if abort.Code == caperrors.Cancelled {
			res.Errors = append(res.Errors, *abort)
			res.FailedStep = abort.StepOrder
		}
	case x.degraded:
		res.Status = PlanCompletedWithWarnings
	default:
		res.Status = PlanCompleted
	}
	res.Plan = x.plan
	res.Outputs = x.results.Map()
	res.Duration = elapsed.String()
	res.Journal = x.log.All()
	for _, s := range x.plan.Steps {
		note, ok := x.notes[stepKey(&s)]
		if !ok {
			note.outcome = OutcomeNotRun
		}
		sr := StepResult{
			Order:        s.Order,
			Title:        s.Title,
			Status:       s.Status,
			Outcome:      note.outcome,
			AutoInjected: s.AutoInjected,
			BlockedBy:    note.blockedBy,
		}
		for _, c := range s.Calls {
			cr, ok := x.calls[c.ID]
			if !ok {
				cr = CallResult{ID: c.ID, Name: c.Name}
			}
			cr.Status = c.Status
			sr.Calls = append(sr.Calls, cr)
		}
		res.Steps = append(res.Steps, sr)
	}

	if x.artifacts != nil {
		if path, err := x.artifacts.WriteResult(res); err != nil {
			x.e.logger.Warn("write result", "err", err)
		} else {
			res.Artifacts = append(res.Artifacts, path)
		}
	}

	ev := progress.EventPlanCompleted
	if res.Status == PlanError {
		ev = progress.EventPlanFailed
		x.e.logger.Error("plan failed", "execution", res.ExecutionID, "step", res.FailedStep, "duration", res.Duration)
	} else {
		x.e.logger.Info("plan finished", "execution", res.ExecutionID, "status", res.Status, "duration", res.Duration)
	}
	x.emit(ev, res.FailedStep, "", "", map[string]any{
		"status":   string(res.Status),
		"steps":    len(res.Steps),
		"injected": len(res.Injected),
	})
	return res
}

func (x *execution) emit(t progress.EventType, order int, callID, name string, payload map[string]any) {
	x.e.progress.Emit(progress.Event{
		Type:         t,
		ExecutionID:  x.rc.ExecutionID,
		CapabilityID: callID,
		Capability:   name,
		StepOrder:    order,
		Timestamp:    x.e.now(),
		Payload:      payload,
	})
}

// stepKey identifies a step across renumbering. Validated plans always have
// at least one call with a unique id.
func stepKey(s *plan.Step) string {
	if len(s.Calls) == 0 {
		return fmt.Sprintf("order:%d", s.Order)
	}
	return s.Calls[0].ID
}
