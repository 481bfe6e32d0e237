package vertex_array_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/attribute_map"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/vertex_array"
)

type fixture struct {
	rec backend.Recorder
	ctx backend.Context
	va  vertex_array.VertexArray
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := backend.NewRecordingBackend()
	ctx := backend.NewContext(rec)
	va, err := vertex_array.NewVertexArray(ctx, vertex_array.WithLabel("mesh"))
	require.NoError(t, err)
	return &fixture{rec: rec, ctx: ctx, va: va}
}

func (f *fixture) vertexBuffer(t *testing.T, data []float32) buffer.VertexBuffer {
	t.Helper()
	vb, err := buffer.NewVertexBuffer(f.ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set(data))
	return vb
}

func layout(t *testing.T, counts ...int) attribute_map.AttributeMap {
	t.Helper()
	m := attribute_map.NewAttributeMap()
	for i, n := range counts {
		_, err := m.Put(string(rune('a'+i)), common.ElementFloat, n, false)
		require.NoError(t, err)
	}
	return m
}

func TestPutAssignsFlatSlotNamespace(t *testing.T) {
	f := newFixture(t)
	first := f.vertexBuffer(t, make([]float32, 30))
	second := f.vertexBuffer(t, make([]float32, 12))

	require.NoError(t, f.va.Put(first, layout(t, 3, 2)))
	assert.Equal(t, 2, f.va.NextSlot())

	// Unrelated work between the two Puts must not shift slots.
	require.NoError(t, f.va.Unbind())
	require.NoError(t, second.Bind())

	require.NoError(t, f.va.Put(second, layout(t, 1, 2, 1)))
	assert.Equal(t, 5, f.va.NextSlot())

	want := []struct {
		buffer backend.Handle
		count  int
		offset int
		stride int
	}{
		{first.Handle(), 3, 0, 20},
		{first.Handle(), 2, 12, 20},
		{second.Handle(), 1, 0, 16},
		{second.Handle(), 2, 4, 16},
		{second.Handle(), 1, 12, 16},
	}
	for slot, w := range want {
		s, ok := f.rec.Slot(f.va.Handle(), slot)
		require.True(t, ok, "slot %d", slot)
		assert.True(t, s.Enabled, "slot %d", slot)
		assert.Equal(t, w.buffer, s.Buffer, "slot %d", slot)
		assert.Equal(t, w.count, s.ComponentCount, "slot %d", slot)
		assert.Equal(t, w.offset, s.Offset, "slot %d", slot)
		assert.Equal(t, w.stride, s.Stride, "slot %d", slot)
	}

	bindings := f.va.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, 0, bindings[0].FirstSlot)
	assert.Equal(t, 2, bindings[1].FirstSlot)
}

func TestCountUsesPrimaryBuffer(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 0, f.va.Count())

	positions := f.vertexBuffer(t, make([]float32, 18))
	colors := f.vertexBuffer(t, make([]float32, 24))
	require.NoError(t, f.va.Put(positions, layout(t, 3)))
	require.NoError(t, f.va.Put(colors, layout(t, 4)))

	assert.Equal(t, 6, f.va.Count())
}

func TestPutRejectsInvalidArguments(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 3))
	f.rec.Reset()

	require.ErrorIs(t, f.va.Put(vb, attribute_map.NewAttributeMap()), common.ErrInvalidLayout)
	require.ErrorIs(t, f.va.Put(vb, nil), common.ErrInvalidLayout)
	require.ErrorIs(t, f.va.Put(nil, layout(t, 3)), common.ErrNullArgument)
	assert.Empty(t, f.rec.Log())
	assert.Equal(t, 0, f.va.NextSlot())
}

func TestPutRollsBackOnBackendFailure(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 24))
	require.NoError(t, f.va.Put(vb, layout(t, 2)))

	boom := errors.New("attribute limit reached")
	f.rec.InjectFailure(backend.OpDescribeAttribute, 2, boom)

	err := f.va.Put(vb, layout(t, 1, 1, 1))
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, common.ErrBackend)

	assert.Equal(t, 1, f.va.NextSlot())
	assert.Len(t, f.va.Bindings(), 1)
	for slot := 1; slot <= 3; slot++ {
		s, _ := f.rec.Slot(f.va.Handle(), slot)
		assert.False(t, s.Enabled, "slot %d", slot)
	}
	s, _ := f.rec.Slot(f.va.Handle(), 0)
	assert.True(t, s.Enabled)
}

func TestPutWithMappedBufferFails(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 3))
	_, err := vb.Map()
	require.NoError(t, err)

	require.ErrorIs(t, f.va.Put(vb, layout(t, 3)), common.ErrAlreadyMapped)
	assert.Equal(t, 0, f.va.NextSlot())
}

func TestClearDisablesSlots(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 12))
	require.NoError(t, f.va.Put(vb, layout(t, 2, 2)))

	require.NoError(t, f.va.Clear())
	assert.Equal(t, 0, f.va.NextSlot())
	assert.Empty(t, f.va.Bindings())
	assert.Equal(t, 0, f.va.Count())
	for slot := range 2 {
		s, _ := f.rec.Slot(f.va.Handle(), slot)
		assert.False(t, s.Enabled)
	}

	_, ok := f.rec.BufferData(vb.Handle())
	assert.True(t, ok)

	require.NoError(t, f.va.Put(vb, layout(t, 4)))
	assert.Equal(t, 1, f.va.NextSlot())
	assert.Equal(t, 3, f.va.Count())
}

func TestDisposeVertexArray(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 3))
	require.NoError(t, f.va.Put(vb, layout(t, 3)))

	require.NoError(t, f.va.Dispose())
	assert.True(t, f.va.Disposed())
	assert.Equal(t, backend.Handle(0), f.rec.Bound(common.TargetVertexArray))
	_, known := f.ctx.Bindings().Bound(0, common.TargetVertexArray)
	assert.False(t, known)

	require.ErrorIs(t, f.va.Dispose(), common.ErrDisposed)
	require.ErrorIs(t, f.va.Bind(), common.ErrDisposed)
	require.ErrorIs(t, f.va.Put(vb, layout(t, 3)), common.ErrDisposed)
	require.ErrorIs(t, f.va.Clear(), common.ErrDisposed)
	assert.False(t, vb.Disposed())
}

func TestRedundantVertexArrayBindIsSkipped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.va.Bind())
	require.NoError(t, f.va.Bind())
	assert.Equal(t, 1, f.rec.Calls(backend.OpBindVertexArray))
	assert.Equal(t, "mesh", f.va.Label())
}

func TestDrawableChecksBoundBuffers(t *testing.T) {
	f := newFixture(t)
	first := f.vertexBuffer(t, make([]float32, 6))
	second := f.vertexBuffer(t, make([]float32, 6))
	require.NoError(t, f.va.Put(first, layout(t, 3)))
	require.NoError(t, f.va.Put(second, layout(t, 3)))
	require.NoError(t, f.va.Drawable())

	_, err := second.Map()
	require.NoError(t, err)
	require.ErrorIs(t, f.va.Drawable(), common.ErrAlreadyMapped)
	require.NoError(t, second.Unmap())

	require.NoError(t, first.Dispose())
	require.ErrorIs(t, f.va.Drawable(), common.ErrDisposed)

	require.NoError(t, f.va.Dispose())
	require.ErrorIs(t, f.va.Drawable(), common.ErrDisposed)
}

func TestFailedDisposeCanBeRetried(t *testing.T) {
	f := newFixture(t)
	vb := f.vertexBuffer(t, make([]float32, 3))
	require.NoError(t, f.va.Put(vb, layout(t, 3)))

	boom := errors.New("device lost")
	f.rec.InjectFailure(backend.OpDeleteVertexArray, 0, boom)
	require.ErrorIs(t, f.va.Dispose(), boom)
	assert.False(t, f.va.Disposed())
	assert.Len(t, f.va.Bindings(), 1)

	require.NoError(t, f.va.Dispose())
	assert.True(t, f.va.Disposed())
}
