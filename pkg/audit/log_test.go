package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestLog_AppendLinksEntries(t *testing.T) {
	l := NewLog(&fakeClock{now: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)})

	e1, err := l.Append("orchestrator", "SESSION_STARTED", "ARB-1", "")
	require.NoError(t, err)
	e2, err := l.Append("orchestrator", "VERDICT_GENERATED", "ARB-1", `{"decision":"violation_confirmed"}`)
	require.NoError(t, err)

	assert.Empty(t, e1.PreviousHash)
	assert.Equal(t, e1.Hash, e2.PreviousHash)
	assert.NotEmpty(t, e2.Hash)
}

func TestLog_VerifyChain(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		_, err := l.Append("orchestrator", "RULES_EVALUATED", "ARB-1", "")
		require.NoError(t, err)
	}

	ok, err := l.VerifyChain()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLog_VerifyChainDetectsTampering(t *testing.T) {
	l := NewLog()
	_, err := l.Append("orchestrator", "SESSION_STARTED", "ARB-1", "")
	require.NoError(t, err)
	_, err = l.Append("orchestrator", "SESSION_COMPLETED", "ARB-1", "")
	require.NoError(t, err)

	// mutate the internal slice directly
	l.entries[0].Details = "forged"

	ok, err := l.VerifyChain()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestLog_EntriesReturnsSnapshot(t *testing.T) {
	l := NewLog()
	_, err := l.Append("orchestrator", "SESSION_STARTED", "ARB-1", "")
	require.NoError(t, err)

	snap := l.Entries()
	snap[0].Actor = "mutated"

	assert.Equal(t, "orchestrator", l.Entries()[0].Actor)
}
