package engine_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/attribute_map"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/staging"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/vertex_array"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// fakeWindow is a headless window. It stays open for polls PollEvents calls and reports a resize
// on the first one when resizeTo is set.
type fakeWindow struct {
	polls    int
	resizeTo [2]int
	onResize func(width, height int)
	closed   bool
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetKeyDownCallback(func(key common.Key))      {}
func (w *fakeWindow) SetKeyUpCallback(func(key common.Key))        {}
func (w *fakeWindow) SetScrollCallback(func(delta float32))        {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor   { return nil }
func (w *fakeWindow) IsRunning() bool                              { return w.polls > 0 }
func (w *fakeWindow) RequestClose()                                { w.polls = 0 }
func (w *fakeWindow) Title() string                                { return "fake" }
func (w *fakeWindow) Width() int                                   { return 640 }
func (w *fakeWindow) Height() int                                  { return 480 }

func (w *fakeWindow) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWindow) PollEvents() bool {
	if w.resizeTo != [2]int{} && w.onResize != nil {
		w.onResize(w.resizeTo[0], w.resizeTo[1])
		w.resizeTo = [2]int{}
	}
	if w.polls <= 0 {
		return false
	}
	w.polls--
	return true
}

func newEngine(t *testing.T, win *fakeWindow, options ...engine.EngineBuilderOption) (engine.Engine, backend.Recorder) {
	t.Helper()
	rec := backend.NewRecordingBackend()
	opts := append([]engine.EngineBuilderOption{engine.WithWindow(win), engine.WithBackend(rec)}, options...)
	e, err := engine.NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

func triangle(t *testing.T, ctx backend.Context) vertex_array.VertexArray {
	t.Helper()
	vb, err := buffer.NewVertexBuffer(ctx, 0, common.UsageStaticDraw)
	require.NoError(t, err)
	require.NoError(t, vb.Set([]float32{0, 0, 1, 0, 0, 1}))
	layout := attribute_map.NewAttributeMap(attribute_map.WithAttribute(attribute_map.NamePosition, common.ElementFloat, 2, false))
	va, err := vertex_array.NewVertexArray(ctx)
	require.NoError(t, err)
	require.NoError(t, va.Put(vb, layout))
	return va
}

func TestRunDrivesFrames(t *testing.T) {
	e, rec := newEngine(t, &fakeWindow{polls: 100}, engine.WithMaxFrames(3))
	va := triangle(t, e.Context())

	frames := 0
	err := e.Run(func(dt float32) error {
		frames++
		assert.GreaterOrEqual(t, dt, float32(0))
		return e.Renderer().Render(common.TopologyTriangles, va)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, frames)
	assert.Equal(t, uint64(3), e.Renderer().Frame())
	for _, op := range []backend.Op{backend.OpBeginFrame, backend.OpDraw, backend.OpEndFrame, backend.OpPresent} {
		assert.Equal(t, 3, rec.Calls(op), op)
	}
	assert.Equal(t, uint64(3), e.Profiler().Totals().Draws)
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	e, rec := newEngine(t, &fakeWindow{polls: 2})

	require.NoError(t, e.Run(func(float32) error { return nil }))
	assert.Equal(t, 2, rec.Calls(backend.OpPresent))
}

func TestQuitFromFrame(t *testing.T) {
	e, _ := newEngine(t, &fakeWindow{polls: 100})

	require.NoError(t, e.Run(func(float32) error {
		e.Quit()
		return nil
	}))
	assert.Equal(t, uint64(1), e.Renderer().Frame())
}

func TestFrameErrorEndsRun(t *testing.T) {
	e, rec := newEngine(t, &fakeWindow{polls: 100})
	boom := errors.New("scene broken")

	err := e.Run(func(float32) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.Calls(backend.OpEndFrame), "the frame is still closed")
	assert.Equal(t, 0, rec.Calls(backend.OpPresent))
}

func TestFramePanicIsRecovered(t *testing.T) {
	e, _ := newEngine(t, &fakeWindow{polls: 100})

	err := e.Run(func(float32) error { panic("bad frame") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad frame")
}

func TestResizeIsForwarded(t *testing.T) {
	e, rec := newEngine(t, &fakeWindow{polls: 1, resizeTo: [2]int{1024, 768}})

	require.NoError(t, e.Run(func(float32) error { return nil }))
	w, h := rec.SurfaceSize()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestUploadQueueFlushedBeforeFrame(t *testing.T) {
	stager := staging.NewStager[float32]()
	e, _ := newEngine(t, &fakeWindow{polls: 100}, engine.WithMaxFrames(1), engine.WithUploadQueue(stager))

	vb, err := buffer.NewVertexBuffer(e.Context(), 4, common.UsageDynamicDraw)
	require.NoError(t, err)
	require.NoError(t, stager.Submit(vb, staging.AtPosition, func() ([]float32, error) {
		return []float32{1, 2, 3, 4}, nil
	}))

	require.NoError(t, e.Run(func(float32) error {
		assert.Equal(t, 4, vb.Count())
		return nil
	}))
	assert.Equal(t, 0, stager.Pending())

	require.NoError(t, e.Close())
	require.ErrorIs(t, stager.Submit(vb, 0, func() ([]float32, error) { return nil, nil }), common.ErrDisposed)
}

func TestTickCallbackRuns(t *testing.T) {
	e, _ := newEngine(t, &fakeWindow{polls: 1000}, engine.WithTickRate(1000))

	var ticks atomic.Int32
	e.SetTickCallback(func(dt float32) {
		if ticks.Add(1) >= 3 {
			e.Quit()
		}
	})

	require.NoError(t, e.Run(func(float32) error {
		time.Sleep(time.Millisecond)
		return nil
	}))
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestConcurrentTickRateChangesNeverBlock(t *testing.T) {
	e, _ := newEngine(t, &fakeWindow{polls: 1000}, engine.WithTickRate(1000))

	// Hold the tick loop inside its callback so nothing drains the rate updates.
	entered := make(chan struct{})
	release := make(chan struct{})
	var hold sync.Once
	e.SetTickCallback(func(float32) {
		hold.Do(func() {
			close(entered)
			<-release
		})
	})

	var settled bool
	require.NoError(t, e.Run(func(float32) error {
		defer e.Quit()
		defer func() {
			select {
			case <-release:
			default:
				close(release)
			}
		}()
		select {
		case <-entered:
		case <-time.After(time.Second):
			return errors.New("tick callback never ran")
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					e.SetTickRate(float64(30 + i))
				}()
			}
			wg.Wait()
		}()
		select {
		case <-done:
			settled = true
		case <-time.After(time.Second):
		}
		return nil
	}))
	assert.True(t, settled, "SetTickRate blocked while the tick loop was busy")
}

func TestRunRejectsNilFrame(t *testing.T) {
	e, _ := newEngine(t, &fakeWindow{polls: 1})
	require.ErrorIs(t, e.Run(nil), common.ErrNullArgument)
}

func TestCloseLeavesSuppliedWindowOpen(t *testing.T) {
	win := &fakeWindow{}
	e, _ := newEngine(t, win)
	require.NoError(t, e.Close())
	assert.False(t, win.closed)
}
