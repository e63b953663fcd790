package capability

import (
	"fmt"
	"strings"
)

// DataCheck is one named pass/fail readiness check.
type DataCheck struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Passed   bool   `json:"passed"`
	Value    any    `json:"value,omitempty"`
	Expected any    `json:"expected,omitempty"`
}

// DataConfirmation separates "the call completed" from "the data is fit to
// proceed". Confirmed is true iff every check passed.
type DataConfirmation struct {
	Checks         []DataCheck `json:"checks"`
	Confirmed      bool        `json:"confirmed"`
	BlocksNextStep bool        `json:"blocks_next_step"`
	Summary        string      `json:"summary"`
}

// NewConfirmation evaluates checks and builds a summary.
func NewConfirmation(blocksNextStep bool, checks ...DataCheck) *DataConfirmation {
	c := &DataConfirmation{Checks: checks, BlocksNextStep: blocksNextStep}
	c.evaluate()
	return c
}

func (c *DataConfirmation) evaluate() {
	c.Confirmed = true
	var failed []string
	for _, chk := range c.Checks {
		if !chk.Passed {
			c.Confirmed = false
			failed = append(failed, chk.ID)
		}
	}
	if c.Confirmed {
		c.Summary = fmt.Sprintf("all %d checks passed", len(c.Checks))
		return
	}
	c.Summary = fmt.Sprintf("%d of %d checks failed: %s", len(failed), len(c.Checks), strings.Join(failed, ", "))
}

// Blocking reports whether this confirmation must hold back dependent steps.
func (c *DataConfirmation) Blocking() bool {
	return c != nil && c.BlocksNextStep && !c.Confirmed
}

// CountAtLeast checks that got >= min.
func CountAtLeast(id, label string, got, min int) DataCheck {
	return DataCheck{ID: id, Label: label, Passed: got >= min, Value: got, Expected: fmt.Sprintf(">= %d", min)}
}

// CountEquals checks that got == want.
func CountEquals(id, label string, got, want int) DataCheck {
	return DataCheck{ID: id, Label: label, Passed: got == want, Value: got, Expected: want}
}

// Check is a plain boolean check.
func Check(id, label string, passed bool) DataCheck {
	return DataCheck{ID: id, Label: label, Passed: passed, Value: passed, Expected: true}
}
