package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

func TestBindingCacheSkipsRepeatedBinds(t *testing.T) {
	c := backend.NewBindingCache()

	assert.True(t, c.Bind(0, common.TargetVertex, 3))
	assert.False(t, c.Bind(0, common.TargetVertex, 3))
	assert.True(t, c.Bind(0, common.TargetIndex, 3))
	assert.True(t, c.Bind(1, common.TargetVertex, 3))
	assert.True(t, c.Bind(0, common.TargetVertex, 4))

	assert.Equal(t, uint64(1), c.Hits())
	assert.Equal(t, uint64(4), c.Misses())
}

func TestBindingCacheFirstUnbindReachesBackend(t *testing.T) {
	c := backend.NewBindingCache()

	assert.True(t, c.Bind(0, common.TargetIndex, 0))
	assert.False(t, c.Bind(0, common.TargetIndex, 0))
}

func TestBindingCacheInvalidate(t *testing.T) {
	c := backend.NewBindingCache()
	c.Bind(0, common.TargetVertex, 7)
	c.Bind(0, common.TargetIndex, 7)
	c.Bind(0, common.TargetVertexArray, 8)

	assert.Equal(t, 2, c.Invalidate(7))
	assert.Equal(t, 0, c.Invalidate(0))

	_, ok := c.Bound(0, common.TargetVertex)
	assert.False(t, ok)
	h, ok := c.Bound(0, common.TargetVertexArray)
	require.True(t, ok)
	assert.Equal(t, backend.Handle(8), h)

	// A recycled handle value must reach the backend again.
	assert.True(t, c.Bind(0, common.TargetVertex, 7))
}

func TestBindingCacheForgetAndReset(t *testing.T) {
	c := backend.NewBindingCache()
	c.Bind(0, common.TargetVertex, 1)
	c.Bind(0, common.TargetProgram, 2)

	c.Forget(0, common.TargetVertex)
	assert.True(t, c.Bind(0, common.TargetVertex, 1))

	c.Reset()
	_, ok := c.Bound(0, common.TargetProgram)
	assert.False(t, ok)
}
