package plan

// StepStatus is the lifecycle state of a step or capability call.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusExecuting StepStatus = "executing"
	StatusCompleted StepStatus = "completed"
	StatusError     StepStatus = "error"
)

// ExecutionPlan is the ordered set of steps that satisfies one objective.
type ExecutionPlan struct {
	ID        string           `yaml:"id,omitempty" json:"id"`
	Objective string           `yaml:"objective" json:"objective"`
	Inputs    map[string]Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Steps     []Step           `yaml:"steps" json:"steps"`
}

// Input defines a plan-level input parameter.
type Input struct {
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Step groups one or more capability calls executed in declared order.
type Step struct {
	Order       int              `yaml:"order,omitempty" json:"order"`
	Title       string           `yaml:"title" json:"title"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string         `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Calls       []CapabilityCall `yaml:"capabilities" json:"capabilities"`
	Status      StepStatus       `yaml:"-" json:"status"`

	// AutoInjected marks steps added by the executor during replanning.
	AutoInjected bool `yaml:"-" json:"auto_injected,omitempty"`
}

// CapabilityCall identifies which capability to run within a step.
type CapabilityCall struct {
	ID          string         `yaml:"id,omitempty" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	DisplayName string         `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Category    string         `yaml:"category,omitempty" json:"category,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Order       int            `yaml:"order,omitempty" json:"order"`
	Status      StepStatus     `yaml:"-" json:"status"`
}

// CapabilityNames lists the capability names called by the step, in order.
func (s Step) CapabilityNames() []string {
	names := make([]string, 0, len(s.Calls))
	for _, c := range s.Calls {
		names = append(names, c.Name)
	}
	return names
}

// Invokes reports whether the step calls the named capability.
func (s Step) Invokes(name string) bool {
	for _, c := range s.Calls {
		if c.Name == name {
			return true
		}
	}
	return false
}
