package capacity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySlotStore_AcquireUpToMax(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySlotStore()

	for i := 0; i < 3; i++ {
		ok, err := s.Acquire(ctx, string(rune('a'+i)), 3)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := s.Acquire(ctx, "overflow", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInMemorySlotStore_ReacquireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySlotStore()

	ok, err := s.Acquire(ctx, "s1", 1)
	require.NoError(t, err)
	require.True(t, ok)

	// same session does not consume a second slot
	ok, err = s.Acquire(ctx, "s1", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	n, _ := s.Active(ctx)
	assert.Equal(t, 1, n)
}

func TestInMemorySlotStore_ReleaseFreesSlot(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySlotStore()

	ok, _ := s.Acquire(ctx, "s1", 1)
	require.True(t, ok)

	ok, _ = s.Acquire(ctx, "s2", 1)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "s1"))

	ok, _ = s.Acquire(ctx, "s2", 1)
	assert.True(t, ok)
}

func TestInMemorySlotStore_ReleaseUnheldIsNoop(t *testing.T) {
	s := NewInMemorySlotStore()
	assert.NoError(t, s.Release(context.Background(), "never-acquired"))
}
