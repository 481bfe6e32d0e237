package buffer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
)

func newContext(t *testing.T, options ...backend.RecordingBackendBuilderOption) (backend.Context, backend.Recorder) {
	t.Helper()
	rec := backend.NewRecordingBackend(options...)
	return backend.NewContext(rec, backend.WithLabel(t.Name())), rec
}

func TestInsertIntoEmptyBufferAllocatesOnce(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)

	data := []float32{0, 1, 2, 3, 4, 5}
	require.NoError(t, vb.Insert(data, 0))

	assert.Equal(t, 6, vb.Capacity())
	assert.Equal(t, 6, vb.Position())
	assert.Equal(t, 6, vb.Count())
	assert.Equal(t, 1, rec.Calls(backend.OpUploadFull))
	assert.Equal(t, 0, rec.Calls(backend.OpUploadRange))

	stored, ok := rec.BufferData(vb.Handle())
	require.True(t, ok)
	assert.Equal(t, data, common.FromBytes[float32](stored))
}

func TestInsertIntoEmptyBufferKeepsLargerCapacity(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 10, common.UsageDynamicDraw)
	require.NoError(t, err)

	require.NoError(t, vb.Insert([]float32{7, 8}, 3))

	assert.Equal(t, 10, vb.Capacity())
	assert.Equal(t, 5, vb.Position())
	assert.Equal(t, 5, vb.Count())

	stored, ok := rec.BufferData(vb.Handle())
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0, 7, 8, 0, 0, 0, 0, 0}, common.FromBytes[float32](stored))
}

func TestInsertSequenceTracksPositionAndHighWaterMark(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageDynamicDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set(make([]float32, 16)))

	steps := []struct {
		at   int
		n    int
		want int
	}{
		{at: 0, n: 4, want: 16},
		{at: 10, n: 6, want: 16},
		{at: 2, n: 2, want: 16},
	}
	for _, s := range steps {
		require.NoError(t, vb.Insert(make([]float32, s.n), s.at))
		assert.Equal(t, s.at+s.n, vb.Position())
		assert.Equal(t, s.want, vb.Count())
	}

	require.NoError(t, vb.Resize(16))
	maxPos := 0
	for _, s := range steps {
		require.NoError(t, vb.Insert(make([]float32, s.n), s.at))
		maxPos = max(maxPos, s.at+s.n)
		assert.Equal(t, s.at+s.n, vb.Position())
		assert.Equal(t, maxPos, vb.Count())
	}
	assert.Equal(t, 6, rec.Calls(backend.OpUploadRange))
}

func TestInsertBeyondCapacityFailsWithoutBackendWrite(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{1, 2, 3, 4}))
	rec.Reset()

	err = vb.Insert([]float32{1, 2, 3}, 2)
	require.ErrorIs(t, err, common.ErrCapacityExceeded)
	assert.Equal(t, 0, rec.Calls(backend.OpUploadRange))
	assert.Equal(t, 0, rec.Calls(backend.OpUploadFull))
	assert.Equal(t, 4, vb.Position())

	err = vb.Insert([]float32{1}, -1)
	require.ErrorIs(t, err, common.ErrCapacityExceeded)
}

func TestNilDataIsRejected(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 4, common.UsageStaticDraw)
	require.NoError(t, err)

	require.ErrorIs(t, vb.Set(nil), common.ErrNullArgument)
	require.ErrorIs(t, vb.Insert(nil, 0), common.ErrNullArgument)
	assert.Equal(t, 0, rec.Calls(backend.OpUploadFull))
	assert.False(t, vb.Allocated())
}

func TestSetThenMapRoundTrips(t *testing.T) {
	ctx, _ := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticRead)
	require.NoError(t, err)

	data := []float32{1.5, -2, 3.25, 4, 5}
	require.NoError(t, vb.Set(data))
	assert.Equal(t, 5, vb.Capacity())
	assert.Equal(t, 5, vb.Position())
	assert.Equal(t, 5, vb.Count())

	m, err := vb.Map()
	require.NoError(t, err)
	assert.Equal(t, data, m.Elements())
	require.NoError(t, vb.Unmap())
}

func TestMapTwiceFails(t *testing.T) {
	for _, name := range []string{"unallocated", "allocated"} {
		t.Run(name, func(t *testing.T) {
			ctx, _ := newContext(t)
			vb, err := buffer.NewVertexBuffer(ctx, 3, common.UsageDynamicDraw)
			require.NoError(t, err)
			if name == "allocated" {
				require.NoError(t, vb.Set([]float32{1, 2, 3}))
			}

			_, err = vb.Map()
			require.NoError(t, err)
			_, err = vb.Map()
			require.ErrorIs(t, err, common.ErrAlreadyMapped)
		})
	}
}

func TestUnmapWithoutMapFails(t *testing.T) {
	ctx, _ := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 3, common.UsageDynamicDraw)
	require.NoError(t, err)

	require.ErrorIs(t, vb.Unmap(), common.ErrNotMapped)
}

func TestMappingCommitsCursor(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 8, common.UsageStreamDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Insert([]float32{1, 2}, 0))

	m, err := vb.Map()
	require.NoError(t, err)
	assert.Equal(t, 2, m.Cursor())
	assert.Equal(t, 8, m.Len())

	require.NoError(t, m.Put(3, 4, 5))
	require.ErrorIs(t, m.Put(make([]float32, 4)...), common.ErrCapacityExceeded)
	require.NoError(t, vb.Unmap())

	assert.Equal(t, 5, vb.Position())
	assert.Equal(t, 5, vb.Count())
	stored, _ := rec.BufferData(vb.Handle())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 0, 0, 0}, common.FromBytes[float32](stored))

	require.ErrorIs(t, m.Put(9), common.ErrNotMapped)
	assert.Nil(t, m.Elements())
}

func TestMappingSeekBackKeepsHighWaterMark(t *testing.T) {
	ctx, _ := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStreamDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set(make([]float32, 6)))

	m, err := vb.Map()
	require.NoError(t, err)
	require.NoError(t, m.Seek(1))
	require.ErrorIs(t, m.Seek(7), common.ErrCapacityExceeded)
	require.NoError(t, m.Put(1))
	require.NoError(t, vb.Unmap())

	assert.Equal(t, 2, vb.Position())
	assert.Equal(t, 6, vb.Count())
}

func TestOperationsWhileMappedFail(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageDynamicDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{1, 2, 3}))
	_, err = vb.Map()
	require.NoError(t, err)
	rec.Reset()

	require.ErrorIs(t, vb.Set([]float32{1}), common.ErrAlreadyMapped)
	require.ErrorIs(t, vb.Insert([]float32{1}, 0), common.ErrAlreadyMapped)
	require.ErrorIs(t, vb.Resize(4), common.ErrAlreadyMapped)
	require.ErrorIs(t, vb.Bind(), common.ErrAlreadyMapped)
	require.ErrorIs(t, vb.Unbind(), common.ErrAlreadyMapped)
	assert.Empty(t, rec.Log())
}

func TestResizeDiscardsContents(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageDynamicDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{1, 2, 3}))

	require.NoError(t, vb.Resize(5))
	assert.Equal(t, 5, vb.Capacity())
	assert.Equal(t, 0, vb.Position())
	assert.Equal(t, 0, vb.Count())

	stored, ok := rec.BufferData(vb.Handle())
	require.True(t, ok)
	assert.Len(t, stored, 20)
	assert.Equal(t, make([]byte, 20), stored)

	require.ErrorIs(t, vb.Resize(-1), common.ErrCapacityExceeded)
}

func TestDisposedBufferRejectsEverything(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{1, 2, 3}))
	require.NoError(t, vb.Dispose())
	assert.True(t, vb.Disposed())
	rec.Reset()

	ops := map[string]func() error{
		"set":     func() error { return vb.Set([]float32{1}) },
		"insert":  func() error { return vb.Insert([]float32{1}, 0) },
		"resize":  func() error { return vb.Resize(3) },
		"bind":    vb.Bind,
		"unbind":  vb.Unbind,
		"unmap":   vb.Unmap,
		"dispose": vb.Dispose,
		"map": func() error {
			_, err := vb.Map()
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, op(), common.ErrDisposed)
		})
	}
	assert.Empty(t, rec.Log())
	assert.Equal(t, 0, rec.Live())
}

func TestDisposeInvalidatesBinding(t *testing.T) {
	ctx, rec := newContext(t)
	a, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, a.Bind())
	require.NoError(t, a.Dispose())

	_, known := ctx.Bindings().Bound(0, common.TargetVertex)
	assert.False(t, known)
	assert.Equal(t, backend.Handle(0), rec.Bound(common.TargetVertex))
}

func TestDisposeClosesOpenMapping(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 2, common.UsageDynamicDraw)
	require.NoError(t, err)
	_, err = vb.Map()
	require.NoError(t, err)

	require.NoError(t, vb.Dispose())
	assert.Equal(t, 1, rec.Calls(backend.OpUnmap))
	assert.False(t, vb.Mapped())
}

func TestFailedDeleteLeavesBufferDisposable(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{1, 2, 3}))

	boom := errors.New("device lost")
	rec.InjectFailure(backend.OpDeleteBuffer, 0, boom)
	err = vb.Dispose()
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, common.ErrBackend)
	assert.False(t, vb.Disposed())

	require.NoError(t, vb.Dispose())
	assert.True(t, vb.Disposed())
	_, ok := rec.BufferData(vb.Handle())
	assert.False(t, ok)
}

func TestRedundantBindIsSkipped(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)

	require.NoError(t, vb.Bind())
	require.NoError(t, vb.Bind())
	require.NoError(t, vb.Set([]float32{1}))
	assert.Equal(t, 1, rec.Calls(backend.OpBindBuffer))

	require.NoError(t, vb.Unbind())
	assert.Equal(t, backend.Handle(0), rec.Bound(common.TargetVertex))
}

func TestUnbindLeavesOtherBufferBound(t *testing.T) {
	ctx, rec := newContext(t)
	a, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	b, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)

	require.NoError(t, b.Bind())
	require.NoError(t, a.Unbind())
	assert.Equal(t, b.Handle(), rec.Bound(common.TargetVertex))
}

func TestIndexBufferWidths(t *testing.T) {
	ctx, rec := newContext(t)

	short, err := buffer.NewIndexBuffer[uint16](ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, short.Set([]uint16{0, 1, 2}))
	assert.Equal(t, common.ElementUnsignedShort, short.ElementType())
	assert.Equal(t, common.TargetIndex, short.Target())
	data, _ := rec.BufferData(short.Handle())
	assert.Len(t, data, 6)

	wide, err := buffer.NewIndexBuffer[uint32](ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, wide.Set([]uint32{0, 1, 2}))
	assert.Equal(t, common.ElementUnsignedInt, wide.ElementType())
	data, _ = rec.BufferData(wide.Handle())
	assert.Len(t, data, 12)

	var src buffer.IndexSource = wide
	assert.Equal(t, 3, src.Count())
}

func TestBackendFailureIsWrapped(t *testing.T) {
	boom := errors.New("out of memory")
	ctx, _ := newContext(t, backend.WithFailure(backend.OpUploadFull, boom))
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)

	err = vb.Set([]float32{1, 2})
	require.ErrorIs(t, err, common.ErrBackend)
	require.ErrorIs(t, err, boom)
	var be *common.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "UploadFull", be.Op)

	assert.Equal(t, 0, vb.Capacity())
	assert.False(t, vb.Allocated())
}

func TestEagerAllocationAndLabel(t *testing.T) {
	ctx, rec := newContext(t)
	vb, err := buffer.NewVertexBuffer(ctx, 4, common.UsageStaticDraw,
		buffer.WithLabel("quad"),
		buffer.WithEagerAllocation())
	require.NoError(t, err)

	assert.Equal(t, "quad", vb.Label())
	assert.True(t, vb.Allocated())
	assert.Equal(t, 0, vb.Count())
	data, ok := rec.BufferData(vb.Handle())
	require.True(t, ok)
	assert.Len(t, data, 16)
}
