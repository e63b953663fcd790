package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/tmc/langchaingo/llms"
)

const decideSystem = `You select research items for a content plan.
Reply with a JSON array of item indices only, for example [0, 2].`

type decide struct {
	llm llms.Model
}

// NewDecide creates the decide capability. With a nil model it picks the
// first items.
func NewDecide(llm llms.Model) capability.Capability {
	return &decide{llm: llm}
}

func (d *decide) Execute(ctx context.Context, in *capability.Input) (*capability.Output, error) {
	res, ok := capability.Lookup[ResearchResult](in.PreviousResults, Research)
	if !ok {
		return capability.Fail(in, caperrors.NewValidationError("no research results to choose from", "Run research before decide")), nil
	}
	count := in.Int("count", 2)
	if count > len(res.Items) {
		count = len(res.Items)
	}

	sel := Selection{}
	var notes []string
	source := "fallback"
	if count > 0 {
		indices, note, err := d.choose(ctx, in.String(capability.KeyObjective), res.Items, count)
		if err != nil {
			return capability.Fail(in, caperrors.From(err)), nil
		}
		if note != "" {
			notes = append(notes, note)
		} else {
			source = "llm"
		}
		for _, i := range indices {
			sel.Items = append(sel.Items, res.Items[i])
		}
		sel.Indices = indices
		sel.Rationale = fmt.Sprintf("selected %d of %d items", len(indices), len(res.Items))
	}

	out := capability.Succeed(in, sel).
		WithSource(source).
		WithConfirmation(capability.NewConfirmation(true,
			capability.CountAtLeast("has_selection", "Items selected", len(sel.Items), 1),
		))
	for _, n := range notes {
		out.Debug(journal.TypeWarning, "%s", n)
	}
	return out.Debug(journal.TypeDecision, "selected %v from %d item(s)", sel.Indices, len(res.Items)), nil
}

// choose asks the model for count indices. An unusable answer falls back to
// the first count items and returns a note saying so.
func (d *decide) choose(ctx context.Context, objective string, items []Item, count int) ([]int, string, error) {
	if d.llm == nil {
		return firstN(count), "no model configured; picked the first items", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\nPick the %d most useful items:\n", objective, count)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s - %s\n", i, it.Title, it.Description)
	}
	reply, err := complete(ctx, d.llm, decideSystem, b.String())
	if err != nil {
		return nil, "", err
	}
	indices := parseIndices(reply, len(items), count)
	if len(indices) == 0 {
		return firstN(count), fmt.Sprintf("could not read a selection from %q; picked the first items", reply), nil
	}
	return indices, "", nil
}

// parseIndices extracts the first JSON array of ints in s, keeping valid,
// distinct indices up to limit.
func parseIndices(s string, n, limit int) []int {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return nil
	}
	var raw []int
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, i := range raw {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
		if len(out) == limit {
			break
		}
	}
	return out
}

func firstN(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
