package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHashTTL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.PutField(ctx, "k", "f", "v", time.Hour))
	val, ok, err := m.GetField(ctx, "k", "f")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	// Expired entries vanish on the next read.
	require.NoError(t, m.PutField(ctx, "short", "f", "v", time.Nanosecond))
	time.Sleep(10 * time.Millisecond)
	_, ok, err = m.GetField(ctx, "short", "f")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := m.GetAllFields(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f": "v"}, all)

	require.NoError(t, m.Invalidate(ctx, "k"))
	_, ok, _ = m.GetField(ctx, "k", "f")
	assert.False(t, ok)
}

func TestMemorySets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.ReplaceSet(ctx, "s", []string{"a", "b"}))
	ok, err := m.IsSetMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	// Replace swaps the whole membership.
	require.NoError(t, m.ReplaceSet(ctx, "s", []string{"c"}))
	ok, _ = m.IsSetMember(ctx, "s", "a")
	assert.False(t, ok)
	ok, _ = m.IsSetMember(ctx, "s", "c")
	assert.True(t, ok)
}

func TestMemoryBloom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.Contains(ctx, "code")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, m.Add(ctx, "code"))
	ok, _ = m.Contains(ctx, "code")
	assert.True(t, ok)
}
