// Package capabilities provides the reference capabilities: web research,
// selection, content generation, document building and persistence.
package capabilities

import (
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/store"
	"github.com/tmc/langchaingo/llms"
)

// Registered names.
const (
	Research = "research"
	Decide   = "decide"
	Generate = "generate"
	Build    = "build"
	Save     = "save"
)

// Deps are the collaborators the reference capabilities need.
type Deps struct {
	LLM       llms.Model // nil disables model-backed choices
	Searcher  Searcher
	Persister store.Persister
	Research  ResearchOptions

	// WriteDocuments writes built HTML into the run's artifact directory.
	WriteDocuments bool
}

// Descriptors returns the registry metadata for every reference capability.
func Descriptors() []capability.Descriptor {
	return []capability.Descriptor{
		{
			Name:        Research,
			DisplayName: "Web research",
			Category:    "research",
			Description: "Searches the web for material relevant to the objective",
		},
		{
			Name:        Decide,
			DisplayName: "Choose topics",
			Category:    "decision",
			Description: "Selects the most relevant research items",
			Critical:    true,
			Requires:    []string{Research},
		},
		{
			Name:        Generate,
			DisplayName: "Generate content",
			Category:    "generation",
			Description: "Writes one piece of content per selected item",
			Critical:    true,
			Requires:    []string{Decide},
			FollowUps:   []string{Build, Save},
		},
		{
			Name:        Build,
			DisplayName: "Build documents",
			Category:    "construction",
			Description: "Renders generated content into sanitised HTML documents",
			Requires:    []string{Generate},
		},
		{
			Name:        Save,
			DisplayName: "Save content",
			Category:    "persistence",
			Description: "Persists generated content for the session owner",
			Critical:    true,
			Requires:    []string{Generate},
		},
	}
}

// Register adds every reference capability to reg.
func Register(reg *capability.Registry, d Deps) error {
	impls := map[string]capability.Capability{
		Research: NewResearch(d.Searcher, d.Research),
		Decide:   NewDecide(d.LLM),
		Generate: NewGenerate(d.LLM),
		Build:    NewBuild(d.WriteDocuments),
		Save:     NewSave(d.Persister),
	}
	for _, desc := range Descriptors() {
		if err := reg.Register(desc, impls[desc.Name]); err != nil {
			return err
		}
	}
	return nil
}
