package staging_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/staging"
)

func newBuffer(t *testing.T, capacity int) (buffer.VertexBuffer, backend.Recorder) {
	t.Helper()
	rec := backend.NewRecordingBackend()
	vb, err := buffer.NewVertexBuffer(backend.NewContext(rec), capacity, common.UsageDynamicDraw)
	require.NoError(t, err)
	return vb, rec
}

// producer returns data after delay, so later submissions can finish first.
func producer(delay time.Duration, data ...float32) func() ([]float32, error) {
	return func() ([]float32, error) {
		time.Sleep(delay)
		return data, nil
	}
}

func TestFlushAppliesInSubmissionOrder(t *testing.T) {
	vb, rec := newBuffer(t, 6)
	s := staging.NewStager[float32](staging.WithWorkers(3))
	defer s.Close()

	require.NoError(t, s.Submit(vb, staging.AtPosition, producer(30*time.Millisecond, 1, 2)))
	require.NoError(t, s.Submit(vb, staging.AtPosition, producer(10*time.Millisecond, 3, 4)))
	require.NoError(t, s.Submit(vb, staging.AtPosition, producer(0, 5, 6)))
	assert.Equal(t, 3, s.Pending())

	require.NoError(t, s.Flush())
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 6, vb.Count())

	data, ok := rec.BufferData(vb.Handle())
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, common.FromBytes[float32](data))
}

func TestFlushExplicitIndex(t *testing.T) {
	vb, rec := newBuffer(t, 4)
	s := staging.NewStager[float32]()
	defer s.Close()

	require.NoError(t, s.Submit(vb, 2, producer(0, 7, 8)))
	require.NoError(t, s.Flush())

	data, _ := rec.BufferData(vb.Handle())
	assert.Equal(t, []float32{0, 0, 7, 8}, common.FromBytes[float32](data))
	assert.Equal(t, 4, vb.Position())
}

func TestFlushJoinsFailures(t *testing.T) {
	vb, _ := newBuffer(t, 2)
	s := staging.NewStager[float32]()
	defer s.Close()

	boom := errors.New("mesh generation failed")
	require.NoError(t, s.Submit(vb, staging.AtPosition, func() ([]float32, error) { return nil, boom }))
	require.NoError(t, s.Submit(vb, 0, producer(0, 1, 2)))
	require.NoError(t, s.Submit(vb, 1, producer(0, 3, 4)))
	require.NoError(t, s.Submit(vb, 0, func() ([]float32, error) { panic("bad vertex") }))

	err := s.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "producer panicked: bad vertex")

	// The good upload between the failures still landed.
	assert.Equal(t, 2, vb.Count())
}

func TestFlushWithNothingPending(t *testing.T) {
	s := staging.NewStager[uint16]()
	defer s.Close()
	require.NoError(t, s.Flush())
}

func TestSubmitFromManyGoroutines(t *testing.T) {
	vb, _ := newBuffer(t, 0)
	require.NoError(t, vb.Resize(100))
	s := staging.NewStager[float32](staging.WithWorkers(4), staging.WithQueueSize(8))
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Submit(vb, staging.AtPosition, producer(0, float32(i), float32(i))))
		}()
	}
	wg.Wait()

	require.NoError(t, s.Flush())
	assert.Equal(t, 100, vb.Count())
}

func TestSubmitValidation(t *testing.T) {
	vb, _ := newBuffer(t, 2)
	s := staging.NewStager[float32]()

	require.ErrorIs(t, s.Submit(nil, 0, producer(0, 1)), common.ErrNullArgument)
	require.ErrorIs(t, s.Submit(vb, 0, nil), common.ErrNullArgument)

	require.NoError(t, s.Submit(vb, 0, producer(10*time.Millisecond, 1, 2)))
	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 0, vb.Count())

	require.ErrorIs(t, s.Submit(vb, 0, producer(0, 1)), common.ErrDisposed)
	require.ErrorIs(t, s.Close(), common.ErrDisposed)
}
