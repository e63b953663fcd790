package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
)

func noop() Capability {
	return Func(func(ctx context.Context, in *Input) (*Output, error) { return Succeed(in, nil), nil })
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "research", Category: "research"}, noop()))
	require.NoError(t, r.Register(Descriptor{Name: "decide", Critical: true}, noop()))

	d, c, err := r.Lookup("decide")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.True(t, d.Critical)
	assert.Equal(t, "decide", d.DisplayName, "display name defaults to name")

	assert.True(t, r.Known("research"))
	assert.False(t, r.Known("teleport"))

	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"research", "decide"}, names)
}

func TestRegistryMissIsCapabilityNotFound(t *testing.T) {
	_, _, err := NewRegistry().Lookup("teleport")
	re, ok := caperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, caperrors.CapabilityNotFound, re.Code)
	assert.Equal(t, caperrors.SeverityCritical, re.Severity)
	assert.False(t, re.Recoverable)
}

func TestRegistryRejectsDuplicatesAndBadDescriptors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "build"}, noop()))
	assert.Error(t, r.Register(Descriptor{Name: "build"}, noop()))
	assert.Error(t, r.Register(Descriptor{}, noop()))
	assert.Error(t, r.Register(Descriptor{Name: "save"}, nil))
	assert.Panics(t, func() { r.MustRegister(Descriptor{Name: "build"}, noop()) })
}

func TestResultsLastWriteWins(t *testing.T) {
	r := NewResults()
	r.Set("generate", &Output{Success: true, Data: "first"})
	r.Set("research", &Output{Success: true, Data: "items"})
	r.Set("generate", &Output{Success: true, Data: "second"})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"generate", "research"}, r.Names())
	out, ok := r.Get("generate")
	require.True(t, ok)
	assert.Equal(t, "second", out.Data)
}

func TestSnapshotIsIsolated(t *testing.T) {
	r := NewResults()
	r.Set("research", &Output{Success: true})
	snap := r.Snapshot()
	r.Set("decide", &Output{Success: true})
	assert.False(t, snap.Has("decide"))
	assert.True(t, snap.Has("research"))
}

type selection struct{ Picked []string }

func TestLookupDecodesCanonicalType(t *testing.T) {
	r := NewResults()
	r.Set("decide", &Output{Success: true, Data: selection{Picked: []string{"a"}}})
	r.Set("pointer", &Output{Success: true, Data: &selection{Picked: []string{"b"}}})
	r.Set("failed", &Output{Success: false, Data: selection{}})
	r.Set("wrong", &Output{Success: true, Data: "text"})

	sel, ok := Lookup[selection](r, "decide")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, sel.Picked)

	sel, ok = Lookup[selection](r, "pointer")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, sel.Picked)

	_, ok = Lookup[selection](r, "failed")
	assert.False(t, ok, "failed outputs are not decoded")
	_, ok = Lookup[selection](r, "wrong")
	assert.False(t, ok)
	_, ok = Lookup[selection](r, "missing")
	assert.False(t, ok)
	_, ok = Lookup[selection](nil, "decide")
	assert.False(t, ok)
}

func TestConfirmation(t *testing.T) {
	c := NewConfirmation(true,
		CountAtLeast("has_activities", "count > 0", 3, 1),
		CountEquals("all_saved", "failed_count = 0", 0, 0),
	)
	assert.True(t, c.Confirmed)
	assert.False(t, c.Blocking())
	assert.Equal(t, "all 2 checks passed", c.Summary)

	c = NewConfirmation(true, Check("has_selection", "selection made", false))
	assert.False(t, c.Confirmed)
	assert.True(t, c.Blocking())
	assert.Contains(t, c.Summary, "has_selection")

	c = NewConfirmation(false, Check("has_selection", "selection made", false))
	assert.False(t, c.Blocking(), "non-blocking confirmations never hold steps")

	var none *DataConfirmation
	assert.False(t, none.Blocking())
}

func TestOutputHelpers(t *testing.T) {
	in := &Input{CapabilityID: "call-1", ExecutionID: "exec-1"}
	out := Succeed(in, 42).WithSource("llm").Debug(journal.TypeDiscovery, "found %d", 4)
	assert.True(t, out.Success)
	assert.Equal(t, "call-1", out.CapabilityID)
	assert.Equal(t, "llm", out.Metadata.DataSource)
	require.Len(t, out.DebugLog, 1)
	assert.Equal(t, "found 4", out.DebugLog[0].Narrative)

	failed := Fail(in, caperrors.NewValidationError("nothing selected", ""))
	assert.False(t, failed.Success)
	assert.NotNil(t, failed.Error)
}

func TestInputAccessors(t *testing.T) {
	in := &Input{Context: map[string]any{
		"query": "volcanoes", "count": 3, "limit": 2.0, "pages": "7", "flag": true,
	}}
	assert.Equal(t, "volcanoes", in.String("query"))
	assert.Equal(t, "true", in.String("flag"))
	assert.Equal(t, "", in.String("missing"))
	assert.Equal(t, 3, in.Int("count", 1))
	assert.Equal(t, 2, in.Int("limit", 1))
	assert.Equal(t, 7, in.Int("pages", 1))
	assert.Equal(t, 5, in.Int("missing", 5))
}
