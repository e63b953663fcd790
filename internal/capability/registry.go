package capability

import (
	"fmt"

	caperrors "github.com/stevehiehn/capflow/internal/errors"
)

// Descriptor carries the static properties of a capability.
type Descriptor struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`

	// Critical capabilities abort the plan when they fail.
	Critical bool `json:"critical"`

	// Requires names capabilities whose output this one reads.
	Requires []string `json:"requires,omitempty"`

	// FollowUps names companions that must run after this one completes.
	FollowUps []string `json:"follow_ups,omitempty"`
}

type entry struct {
	desc Descriptor
	impl Capability
}

// Registry maps capability names to implementations.
type Registry struct {
	entries map[string]entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a capability. Names must be unique.
func (r *Registry) Register(d Descriptor, c Capability) error {
	if d.Name == "" {
		return fmt.Errorf("capability descriptor has no name")
	}
	if c == nil {
		return fmt.Errorf("capability %q has no implementation", d.Name)
	}
	if _, dup := r.entries[d.Name]; dup {
		return fmt.Errorf("capability %q already registered", d.Name)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	r.entries[d.Name] = entry{desc: d, impl: c}
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(d Descriptor, c Capability) {
	if err := r.Register(d, c); err != nil {
		panic(err)
	}
}

// Lookup returns a capability by name. A miss is a CAPABILITY_NOT_FOUND
// RunError.
func (r *Registry) Lookup(name string) (Descriptor, Capability, error) {
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, nil, caperrors.NewNotFound(name)
	}
	return e.desc, e.impl, nil
}

// Descriptor returns the descriptor for name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	e, ok := r.entries[name]
	return e.desc, ok
}

// Known returns true if the capability name is registered.
func (r *Registry) Known(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.entries[n].desc)
	}
	return out
}
