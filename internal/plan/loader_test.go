package plan

import (
	"testing"
)

func TestLoadMinimalPlan(t *testing.T) {
	yaml := []byte(`
objective: write two lessons about volcanoes
steps:
  - title: Research
    capabilities:
      - name: research
`)
	p, err := Load(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Objective != "write two lessons about volcanoes" {
		t.Errorf("unexpected objective %q", p.Objective)
	}
	if p.ID == "" {
		t.Error("expected a generated plan id")
	}
	if len(p.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(p.Steps))
	}
	s := p.Steps[0]
	if s.Order != 1 {
		t.Errorf("expected order 1, got %d", s.Order)
	}
	if s.Status != StatusPending {
		t.Errorf("expected pending, got %q", s.Status)
	}
	if s.Calls[0].ID == "" || s.Calls[0].Order != 1 {
		t.Errorf("expected call id and order to be filled, got %+v", s.Calls[0])
	}
}

func TestLoadFullFeaturedPlan(t *testing.T) {
	yaml := []byte(`
id: plan-1
objective: lessons
inputs:
  topic:
    required: true
    description: subject to research
    default: volcanoes
steps:
  - title: Research
    capabilities:
      - name: research
        parameters:
          query: "{{inputs.topic}}"
          max_results: 4
  - title: Decide
    depends_on: [research]
    capabilities:
      - name: decide
        display_name: Pick activities
        parameters:
          count: 2
`)
	p, err := Load(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "plan-1" {
		t.Errorf("expected id plan-1, got %q", p.ID)
	}
	inp := p.Inputs["topic"]
	if !inp.Required || inp.Default != "volcanoes" {
		t.Errorf("unexpected input %+v", inp)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(p.Steps))
	}
	if p.Steps[1].Order != 2 {
		t.Errorf("expected order 2, got %d", p.Steps[1].Order)
	}
	if p.Steps[1].DependsOn[0] != "research" {
		t.Errorf("expected dependency on research, got %v", p.Steps[1].DependsOn)
	}
	if p.Steps[0].Calls[0].Parameters["max_results"] != 4 {
		t.Errorf("expected max_results 4, got %v", p.Steps[0].Calls[0].Parameters["max_results"])
	}
	if p.Steps[1].Calls[0].DisplayName != "Pick activities" {
		t.Errorf("unexpected display name %q", p.Steps[1].Calls[0].DisplayName)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load([]byte(`:::not valid yaml[[[`))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadRejectsEmptyPlan(t *testing.T) {
	_, err := Load([]byte(`
objective: nothing
steps: []
`))
	if err == nil {
		t.Fatal("expected error for empty plan")
	}
}

func TestLoadRejectsPlanWithNoObjective(t *testing.T) {
	_, err := Load([]byte(`
steps:
  - title: s1
    capabilities:
      - name: research
`))
	if err == nil {
		t.Fatal("expected error for plan with no objective")
	}
}

func TestApplyDefaults(t *testing.T) {
	p := &ExecutionPlan{Inputs: map[string]Input{
		"topic": {Default: "volcanoes"},
		"grade": {Default: "5"},
	}}
	got := p.ApplyDefaults(map[string]string{"grade": "7"})
	if got["topic"] != "volcanoes" {
		t.Errorf("expected default topic, got %q", got["topic"])
	}
	if got["grade"] != "7" {
		t.Errorf("expected provided grade to win, got %q", got["grade"])
	}
}
