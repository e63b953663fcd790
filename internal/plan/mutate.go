package plan

import "maps"

// Renumber rewrites every step's order as its 1-based position.
func (p *ExecutionPlan) Renumber() {
	for i := range p.Steps {
		p.Steps[i].Order = i + 1
	}
}

// InsertAfter splices steps immediately after the step at index and
// renumbers the plan. An index of -1 inserts at the front.
func (p *ExecutionPlan) InsertAfter(index int, steps ...Step) {
	if len(steps) == 0 {
		return
	}
	if index < -1 {
		index = -1
	}
	if index >= len(p.Steps) {
		index = len(p.Steps) - 1
	}
	for i := range steps {
		if steps[i].Status == "" {
			steps[i].Status = StatusPending
		}
	}
	at := index + 1
	out := make([]Step, 0, len(p.Steps)+len(steps))
	out = append(out, p.Steps[:at]...)
	out = append(out, steps...)
	out = append(out, p.Steps[at:]...)
	p.Steps = out
	p.Renumber()
}

// Contains reports whether any step at or after index from invokes name.
func (p *ExecutionPlan) Contains(name string, from int) bool {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(p.Steps); i++ {
		if p.Steps[i].Invokes(name) {
			return true
		}
	}
	return false
}

// StepByOrder returns the step with the given order.
func (p *ExecutionPlan) StepByOrder(order int) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].Order == order {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so one execution never mutates a shared plan.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	c := &ExecutionPlan{
		ID:        p.ID,
		Objective: p.Objective,
		Inputs:    maps.Clone(p.Inputs),
		Steps:     make([]Step, len(p.Steps)),
	}
	for i, s := range p.Steps {
		s.DependsOn = append([]string(nil), s.DependsOn...)
		calls := make([]CapabilityCall, len(s.Calls))
		for j, call := range s.Calls {
			call.Parameters = maps.Clone(call.Parameters)
			calls[j] = call
		}
		s.Calls = calls
		c.Steps[i] = s
	}
	return c
}
