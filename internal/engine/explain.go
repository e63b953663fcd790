package engine

import (
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/plan"
)

// Preview is a static walk of a plan: what each step calls and which
// companion steps would be injected if every step succeeded.
type Preview struct {
	Objective string        `json:"objective"`
	Steps     []PreviewStep `json:"steps"`
	Missing   []string      `json:"missing,omitempty"`
}

type PreviewStep struct {
	Order        int           `json:"order"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	DependsOn    []string      `json:"depends_on,omitempty"`
	Calls        []PreviewCall `json:"calls"`
	AutoInjected bool          `json:"auto_injected,omitempty"`
	Trigger      string        `json:"trigger,omitempty"`
}

type PreviewCall struct {
	Name       string         `json:"name"`
	Display    string         `json:"display_name,omitempty"`
	Registered bool           `json:"registered"`
	Critical   bool           `json:"critical"`
	Requires   []string       `json:"requires,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Explain previews p against reg without running anything.
func Explain(reg *capability.Registry, p *plan.ExecutionPlan) *Preview {
	work := p.Clone()
	work.Normalize()
	pv := &Preview{Objective: work.Objective}
	missing := map[string]bool{}
	injected := map[string]bool{}
	triggers := map[int]string{} // step index -> trigger of an injected step

	for i := 0; i < len(work.Steps); i++ {
		s := work.Steps[i]
		ps := PreviewStep{
			Order:        s.Order,
			Title:        s.Title,
			Description:  s.Description,
			DependsOn:    s.DependsOn,
			AutoInjected: s.AutoInjected,
			Trigger:      triggers[i],
		}
		var adds []plan.Step
		var addTriggers []string
		for _, c := range s.Calls {
			d, ok := reg.Descriptor(c.Name)
			ps.Calls = append(ps.Calls, PreviewCall{
				Name:       c.Name,
				Display:    d.DisplayName,
				Registered: ok,
				Critical:   d.Critical,
				Requires:   d.Requires,
				Parameters: c.Parameters,
			})
			if !ok {
				if !missing[c.Name] {
					missing[c.Name] = true
					pv.Missing = append(pv.Missing, c.Name)
				}
				continue
			}
			for _, f := range d.FollowUps {
				key := c.Name + "->" + f
				if injected[key] || work.Contains(f, i+1) || pendingContains(adds, f) {
					continue
				}
				fd, ok := reg.Descriptor(f)
				if !ok {
					continue
				}
				injected[key] = true
				adds = append(adds, plan.Step{
					Title:        fd.DisplayName,
					Calls:        []plan.CapabilityCall{{Name: f, DisplayName: fd.DisplayName, Category: fd.Category}},
					AutoInjected: true,
				})
				addTriggers = append(addTriggers, c.Name)
			}
		}
		pv.Steps = append(pv.Steps, ps)
		if len(adds) > 0 {
			work.InsertAfter(i, adds...)
			shifted := map[int]string{}
			for k, v := range triggers {
				if k > i {
					k += len(adds)
				}
				shifted[k] = v
			}
			for k, t := range addTriggers {
				shifted[i+1+k] = t
			}
			triggers = shifted
		}
	}
	return pv
}
