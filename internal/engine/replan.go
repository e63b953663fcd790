package engine

import (
	"fmt"

	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/stevehiehn/capflow/internal/plan"
	"github.com/stevehiehn/capflow/internal/progress"
	"github.com/stevehiehn/capflow/internal/template"
)

// replan splices companion steps after the step at index for every
// capability in completed whose follow-ups are missing from the rest of the
// plan. Each trigger/companion pair is injected at most once per execution.
func (x *execution) replan(index int, completed []string) {
	e := x.e
	var steps []plan.Step
	var records []InjectedStep
	for _, trigger := range completed {
		d, ok := e.registry.Descriptor(trigger)
		if !ok {
			continue
		}
		for _, companion := range d.FollowUps {
			key := trigger + "->" + companion
			if x.injected[key] {
				continue
			}
			if x.plan.Contains(companion, index+1) || pendingContains(steps, companion) {
				continue
			}
			cd, ok := e.registry.Descriptor(companion)
			if !ok {
				x.note(trigger, journal.Entry{
					Timestamp: e.now(),
					Type:      journal.TypeWarning,
					Narrative: fmt.Sprintf("Follow-up %q is not registered; not adding it", companion),
					Severity:  journal.SeverityMedium,
				})
				continue
			}
			x.injected[key] = true
			steps = append(steps, plan.Step{
				Title:       cd.DisplayName,
				Description: fmt.Sprintf("Added automatically after %s", d.DisplayName),
				Status:      plan.StatusPending,
				Calls: []plan.CapabilityCall{{
					ID:          e.newID(),
					Name:        cd.Name,
					DisplayName: cd.DisplayName,
					Category:    cd.Category,
					Order:       1,
					Status:      plan.StatusPending,
				}},
				AutoInjected: true,
			})
			records = append(records, InjectedStep{Capability: companion, Trigger: trigger})
		}
	}
	if len(steps) == 0 {
		return
	}

	after := x.plan.Steps[index].Order
	x.plan.InsertAfter(index, steps...)
	for k := range records {
		records[k].AfterOrder = after
		records[k].Order = after + 1 + k
	}
	x.result.Injected = append(x.result.Injected, records...)

	for _, r := range records {
		x.note(r.Trigger, journal.Entry{
			Timestamp: e.now(),
			Type:      journal.TypeDecision,
			Narrative: fmt.Sprintf("Added step %d (%s) because %s needs it", r.Order, r.Capability, r.Trigger),
			TechnicalData: map[string]any{
				"order":       r.Order,
				"after_order": r.AfterOrder,
			},
		})
	}
	e.logger.Info("plan mutated", "after", after, "added", len(records), "steps", len(x.plan.Steps))
	x.emit(progress.EventPlanMutated, after, "", "", map[string]any{
		"injected": records,
		"steps":    len(x.plan.Steps),
	})
}

func pendingContains(steps []plan.Step, name string) bool {
	for _, s := range steps {
		if s.Invokes(name) {
			return true
		}
	}
	return false
}

func resolveParams(params map[string]any, rc *RunContext) (map[string]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	return template.ResolveParams(params, rc.TmplCtx)
}
