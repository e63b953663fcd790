package capability

// Results is the execution-scoped Results Channel: capability name to its
// latest output. Re-running a capability overwrites its earlier entry.
//
// Only the executor writes to it; capabilities receive read-only snapshots.
type Results struct {
	outputs map[string]*Output
	order   []string
}

func NewResults() *Results {
	return &Results{outputs: map[string]*Output{}}
}

// Set stores out as the latest output for name.
func (r *Results) Set(name string, out *Output) {
	if _, ok := r.outputs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.outputs[name] = out
}

// Get returns the latest output for name.
func (r *Results) Get(name string) (*Output, bool) {
	if r == nil {
		return nil, false
	}
	out, ok := r.outputs[name]
	return out, ok
}

func (r *Results) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns capability names in first-write order.
func (r *Results) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.outputs)
}

// Snapshot returns a copy whose map can't be changed through the original.
func (r *Results) Snapshot() *Results {
	s := NewResults()
	if r == nil {
		return s
	}
	for _, n := range r.order {
		s.Set(n, r.outputs[n])
	}
	return s
}

// Map returns a copy of the channel as a plain map.
func (r *Results) Map() map[string]*Output {
	out := make(map[string]*Output, r.Len())
	if r == nil {
		return out
	}
	for k, v := range r.outputs {
		out[k] = v
	}
	return out
}

// Lookup decodes the data of a successful output for name as T.
func Lookup[T any](r *Results, name string) (T, bool) {
	var zero T
	out, ok := r.Get(name)
	if !ok || out == nil || !out.Success {
		return zero, false
	}
	switch v := out.Data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	return zero, false
}
