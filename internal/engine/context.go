package engine

import (
	"maps"

	"github.com/google/uuid"
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/template"
)

// RunContext holds caller-supplied state for one plan execution.
type RunContext struct {
	ExecutionID string
	WorkDir     string
	Inputs      map[string]string
	Session     map[string]string // owner_id and other session identifiers
	TmplCtx     *template.Context
}

// NewRunContext creates a new execution context with a fresh execution id.
func NewRunContext(workDir string, inputs, session map[string]string) *RunContext {
	if inputs == nil {
		inputs = map[string]string{}
	}
	session = maps.Clone(session)
	if session == nil {
		session = map[string]string{}
	}
	id := uuid.NewString()
	session[capability.KeyExecutionID] = id
	return &RunContext{
		ExecutionID: id,
		WorkDir:     workDir,
		Inputs:      inputs,
		Session:     session,
		TmplCtx: &template.Context{
			Inputs:  inputs,
			Session: session,
		},
	}
}

// OwnerID returns the session owner, if any.
func (rc *RunContext) OwnerID() string {
	return rc.Session[capability.KeyOwnerID]
}
