package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
)

// AtPosition inserts produced data at the target buffer's position as it is when the upload is
// applied, so consecutive uploads to one buffer append in submission order.
const AtPosition = -1

// upload is one submitted producer and its result. data and err are written by the worker before
// done is closed and only read after.
type upload[E buffer.Element] struct {
	id     int
	target buffer.Buffer[E]
	at     int
	data   []E
	err    error
	done   chan struct{}
}

// stager is the implementation of the Stager interface.
type stager[E buffer.Element] struct {
	mu      sync.Mutex
	pool    worker.DynamicWorkerPool
	logger  *slog.Logger
	workers int
	queue   int
	idle    time.Duration

	nextID  int
	pending []*upload[E]
	closed  bool
}

// Stager runs vertex or index data producers on a worker pool and applies their results to buffers
// on the thread that owns the graphics context.
//
// Submit may be called from any goroutine. Flush and Close must be called from the render thread,
// since they touch buffers.
type Stager[E buffer.Element] interface {
	// Submit schedules produce on the worker pool. Its result is inserted into target at element
	// index at by the next Flush.
	//
	// Parameters:
	//   - target: the buffer the produced data is inserted into
	//   - at: the element index to insert at, or AtPosition
	//   - produce: the producer, run on a worker goroutine
	//
	// Returns:
	//   - error: common.ErrNullArgument for a nil target or producer, common.ErrDisposed after Close
	Submit(target buffer.Buffer[E], at int, produce func() ([]E, error)) error

	// Flush waits for every submitted producer and applies the results in submission order. A
	// failed producer or insert does not stop the remaining uploads.
	//
	// Returns:
	//   - error: the joined errors of every failed producer and insert, or nil
	Flush() error

	// Pending returns the number of uploads submitted and not yet flushed.
	Pending() int

	// Close waits for running producers and discards their results. Later calls to Submit fail.
	Close() error
}

var _ Stager[float32] = &stager[float32]{}

// NewStager creates a Stager backed by a dynamic worker pool.
//
// Parameters:
//   - options: variadic list of StagerBuilderOption functions to configure the stager
//
// Returns:
//   - Stager[E]: the new stager
func NewStager[E buffer.Element](options ...StagerBuilderOption) Stager[E] {
	cfg := &stagerConfig{
		workers: max(runtime.NumCPU()-1, 1),
		queue:   256,
		idle:    time.Second,
	}
	for _, opt := range options {
		opt(cfg)
	}

	s := &stager[E]{
		logger:  common.Coalesce(cfg.logger, common.Logger()),
		workers: cfg.workers,
		queue:   cfg.queue,
		idle:    cfg.idle,
	}
	// Workers exit after idle, so an unused stager holds no goroutines.
	s.pool = worker.NewDynamicWorkerPool(s.workers, s.queue, s.idle)
	return s
}

func (s *stager[E]) Submit(target buffer.Buffer[E], at int, produce func() ([]E, error)) error {
	if target == nil || produce == nil {
		return fmt.Errorf("submit upload: %w", common.ErrNullArgument)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("submit upload: stager %w", common.ErrDisposed)
	}
	u := &upload[E]{
		id:     s.nextID,
		target: target,
		at:     at,
		done:   make(chan struct{}),
	}
	s.nextID++
	s.pending = append(s.pending, u)
	s.mu.Unlock()

	s.pool.SubmitTask(worker.Task{
		ID: u.id,
		Do: func() (any, error) {
			defer close(u.done)
			defer func() {
				if r := recover(); r != nil {
					u.err = fmt.Errorf("producer panicked: %v", r)
				}
			}()
			u.data, u.err = produce()
			return nil, u.err
		},
	})
	return nil
}

// take detaches the pending uploads so producers submitted while they are waited on go to the next
// Flush.
func (s *stager[E]) take() []*upload[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *stager[E]) Flush() error {
	batch := s.take()
	if len(batch) == 0 {
		return nil
	}

	var errs []error
	applied := 0
	for _, u := range batch {
		<-u.done
		if u.err != nil {
			errs = append(errs, fmt.Errorf("upload %d: %w", u.id, u.err))
			continue
		}
		if u.data == nil {
			// A producer with nothing to upload is not an error.
			continue
		}
		at := u.at
		if at == AtPosition {
			at = u.target.Position()
		}
		if err := u.target.Insert(u.data, at); err != nil {
			errs = append(errs, fmt.Errorf("upload %d into %s: %w", u.id, u.target.Label(), err))
			continue
		}
		applied++
	}

	s.logger.Debug("staged uploads flushed",
		slog.Int("submitted", len(batch)),
		slog.Int("applied", applied),
		slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (s *stager[E]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *stager[E]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("close stager: %w", common.ErrDisposed)
	}
	s.closed = true
	s.mu.Unlock()

	batch := s.take()
	for _, u := range batch {
		<-u.done
	}
	if len(batch) > 0 {
		s.logger.Debug("staged uploads discarded", slog.Int("count", len(batch)))
	}
	return nil
}
