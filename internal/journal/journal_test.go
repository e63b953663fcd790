package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogKeepsPerCapabilityOrder(t *testing.T) {
	l := NewLog()
	l.Reset("exec-1")
	l.Append("research", Entry{Type: TypeAction, Narrative: "searching"})
	l.Append("decide", Entry{Type: TypeDecision, Narrative: "picked 2"})
	l.Append("research", Entry{Type: TypeDiscovery, Narrative: "found 4"})

	assert.Equal(t, "exec-1", l.ExecutionID())
	assert.Equal(t, []string{"research", "decide"}, l.Capabilities())

	entries := l.Entries("research")
	require.Len(t, entries, 2)
	assert.Equal(t, "searching", entries[0].Narrative)
	assert.Equal(t, "found 4", entries[1].Narrative)

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, "decide", all[1].Capability)
}

func TestLogDefaultsTimestampAndSeverity(t *testing.T) {
	l := NewLog()
	before := time.Now()
	l.Append("build", Entry{Type: TypeInfo, Narrative: "x"})
	e := l.Entries("build")[0]
	assert.False(t, e.Timestamp.Before(before))
	assert.Equal(t, SeverityLow, e.Severity)
}

func TestResetClearsEverything(t *testing.T) {
	l := NewLog()
	l.Append("build", Entry{Type: TypeError, Narrative: "boom"})
	l.Reset("exec-2")
	assert.Empty(t, l.Capabilities())
	assert.Empty(t, l.All())
	assert.Empty(t, l.Entries("build"))
}

func TestCount(t *testing.T) {
	l := NewLog()
	l.Append("build", Entry{Type: TypeError})
	l.Append("build", Entry{Type: TypeInfo})
	l.Append("build", Entry{Type: TypeError})
	assert.Equal(t, 2, l.Count("build", TypeError))
	assert.Equal(t, 0, l.Count("save", TypeError))
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Append("build", Entry{Narrative: "original"})
	got := l.Entries("build")
	got[0].Narrative = "changed"
	assert.Equal(t, "original", l.Entries("build")[0].Narrative)
}
