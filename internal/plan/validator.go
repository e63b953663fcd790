package plan

import (
	"fmt"
	"regexp"

	caperrors "github.com/stevehiehn/capflow/internal/errors"
)

var templateInputRe = regexp.MustCompile(`\{\{inputs\.([^}]+)\}\}`)

// Validate checks a plan for structural correctness. known reports whether a
// capability name is registered; nil skips that check. providedInputs may be
// nil in validate-only mode.
func Validate(p *ExecutionPlan, known func(string) bool, providedInputs map[string]string) error {
	if p.Objective == "" {
		return caperrors.NewValidationError("plan has no objective", "Set a top-level objective")
	}
	if len(p.Steps) == 0 {
		return caperrors.NewValidationError("plan has no steps", "")
	}

	if providedInputs != nil {
		for name, inp := range p.Inputs {
			if !inp.Required {
				continue
			}
			if _, ok := providedInputs[name]; !ok && inp.Default == "" {
				return caperrors.NewValidationError(
					fmt.Sprintf("missing required input %q", name),
					fmt.Sprintf("Provide --input %s=<value>", name),
				)
			}
		}
	}

	produced := map[string]bool{}
	seenCalls := map[string]bool{}
	for i, s := range p.Steps {
		if s.Order != i+1 {
			return caperrors.NewValidationError(
				fmt.Sprintf("step %q has order %d, expected %d", s.Title, s.Order, i+1),
				"Step orders must be dense and start at 1",
			)
		}
		if len(s.Calls) == 0 {
			return caperrors.NewValidationError(
				fmt.Sprintf("step %d (%s) has no capabilities", s.Order, s.Title),
				"Every step must call at least one capability",
			)
		}
		for _, dep := range s.DependsOn {
			if !produced[dep] {
				return caperrors.NewValidationError(
					fmt.Sprintf("step %d depends on %q which no earlier step produces", s.Order, dep),
					"",
				)
			}
		}
		for _, c := range s.Calls {
			if c.Name == "" {
				return caperrors.NewValidationError(
					fmt.Sprintf("step %d has a capability call with no name", s.Order), "",
				)
			}
			if c.ID != "" {
				if seenCalls[c.ID] {
					return caperrors.NewValidationError(fmt.Sprintf("duplicate capability call id %q", c.ID), "")
				}
				seenCalls[c.ID] = true
			}
			if known != nil && !known(c.Name) {
				err := caperrors.NewNotFound(c.Name)
				err.StepOrder = s.Order
				return err
			}
			for _, name := range collectInputRefs(c.Parameters) {
				if _, ok := p.Inputs[name]; !ok {
					return caperrors.NewValidationError(
						fmt.Sprintf("step %d references unknown input %q", s.Order, name), "",
					)
				}
			}
		}
		for _, c := range s.Calls {
			produced[c.Name] = true
		}
	}
	return nil
}

func collectInputRefs(params map[string]any) []string {
	var refs []string
	for _, str := range paramStrings(params) {
		for _, m := range templateInputRe.FindAllStringSubmatch(str, -1) {
			refs = append(refs, m[1])
		}
	}
	return refs
}

func paramStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case map[string]any:
		var out []string
		for _, x := range t {
			out = append(out, paramStrings(x)...)
		}
		return out
	case []any:
		var out []string
		for _, x := range t {
			out = append(out, paramStrings(x)...)
		}
		return out
	}
	return nil
}
