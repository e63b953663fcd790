package plan

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a plan YAML file.
func LoadFile(path string) (*ExecutionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Load(data)
}

// Load parses plan YAML bytes and normalises identifiers and orders.
func Load(data []byte) (*ExecutionPlan, error) {
	var p ExecutionPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	if p.Objective == "" {
		return nil, fmt.Errorf("plan has no objective")
	}
	p.Normalize()
	return &p, nil
}

// New builds a plan from steps, assigning ids and dense orders.
func New(objective string, steps ...Step) *ExecutionPlan {
	p := &ExecutionPlan{Objective: objective, Steps: steps}
	p.Normalize()
	return p
}

// Normalize fills missing ids, resets statuses to pending and renumbers
// steps and calls.
func (p *ExecutionPlan) Normalize() {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Status == "" {
			s.Status = StatusPending
		}
		for j := range s.Calls {
			c := &s.Calls[j]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if c.Status == "" {
				c.Status = StatusPending
			}
			c.Order = j + 1
		}
	}
	p.Renumber()
}

// ApplyDefaults fills unset inputs from the plan's declared defaults.
func (p *ExecutionPlan) ApplyDefaults(inputs map[string]string) map[string]string {
	if inputs == nil {
		inputs = map[string]string{}
	}
	for name, inp := range p.Inputs {
		if _, ok := inputs[name]; !ok && inp.Default != "" {
			inputs[name] = inp.Default
		}
	}
	return inputs
}
