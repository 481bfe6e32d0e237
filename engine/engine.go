package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// UploadQueue is flushed by the render loop before each frame. staging.Stager satisfies it for
// every element type.
type UploadQueue interface {
	Flush() error
	Pending() int
	Close() error
}

// releaser is implemented by backends that own GPU objects outside of any handle.
type releaser interface {
	Release()
}

// engine implements the Engine interface.
// Owns the window, the graphics context and the render loop, and runs the tick loop in its own
// goroutine.
type engine struct {
	logger *slog.Logger

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window     window.Window
	ownsWindow bool

	backend     backend.Backend
	ownsBackend bool
	ctx         backend.Context
	renderer    renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	queues []UploadQueue

	// rateMu serializes tick rate updates so a pending update is replaced, never queued.
	rateMu         sync.Mutex
	engineTickRate time.Duration
	tickMu         sync.Mutex
	tickCallback   func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // frames after which Run returns; 0 = unlimited

	windowOptions   []window.WindowBuilderOption
	backendOptions  []wgpu_backend.WGPUBackendBuilderOption
	contextOptions  []backend.ContextBuilderOption
	profilerOptions []profiler.ProfilerBuilderOption
}

// Engine is the main entry point for the engine.
// It orchestrates the render loop on the calling thread, the tick loop, and window management.
type Engine interface {
	// Window returns the underlying window.
	Window() window.Window

	// Context returns the graphics context every resource must be created with.
	Context() backend.Context

	// Renderer returns the renderer that draws through Context.
	Renderer() renderer.Renderer

	// Profiler returns the profiler counting the traffic of Context's backend.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick on the tick goroutine.
	// Use this for game logic. It must not touch GPU resources; hand data to an UploadQueue
	// instead.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// AddUploadQueue registers a queue that the render loop flushes before each frame.
	AddUploadQueue(q UploadQueue)

	// Run drives the render loop on the calling goroutine, locked to its OS thread, until the
	// window closes, Quit is called, the frame limit is reached or frame fails. Each frame polls
	// window events, flushes upload queues, then calls frame between BeginFrame and EndFrame and
	// presents.
	//
	// Parameters:
	//   - frame: the per-frame draw function, receiving the delta time in seconds
	//
	// Returns:
	//   - error: the error of a failed frame or frame bracket, or nil on a normal exit
	Run(frame func(deltaTime float32) error) error

	// Quit signals the loops to stop after the current frame.
	// Safe to call multiple times and from any goroutine.
	Quit()

	// Close releases the upload queues, the backend and the window the engine created.
	Close() error
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// A window and a WebGPU backend are created unless supplied through WithWindow and WithBackend.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the window or the backend could not be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.logger == nil {
		e.logger = common.Logger()
	}

	if e.window == nil {
		w, err := window.NewWindow(e.windowOptions...)
		if err != nil {
			return nil, err
		}
		e.window = w
		e.ownsWindow = true
	}

	if e.backend == nil {
		opts := append([]wgpu_backend.WGPUBackendBuilderOption{wgpu_backend.WithLogger(e.logger)}, e.backendOptions...)
		b, err := wgpu_backend.NewWGPUBackend(e.window.SurfaceDescriptor(), e.window.Width(), e.window.Height(), opts...)
		if err != nil {
			if e.ownsWindow {
				_ = e.window.Close()
			}
			return nil, fmt.Errorf("failed to create backend: %w", err)
		}
		e.backend = b
		e.ownsBackend = true
	}

	e.profiler = profiler.NewProfiler(append([]profiler.ProfilerBuilderOption{profiler.WithLogger(e.logger)}, e.profilerOptions...)...)
	ctxOpts := append([]backend.ContextBuilderOption{backend.WithLogger(e.logger)}, e.contextOptions...)
	e.ctx = backend.NewContext(e.profiler.Instrument(e.backend), ctxOpts...)
	e.profiler.TrackBindings(e.ctx.Bindings())

	r, err := renderer.NewRenderer(e.ctx, renderer.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.renderer = r

	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})
	return e, nil
}

func (e *engine) Window() window.Window        { return e.window }
func (e *engine) Context() backend.Context     { return e.ctx }
func (e *engine) Renderer() renderer.Renderer  { return e.renderer }
func (e *engine) Profiler() *profiler.Profiler { return e.profiler }
func (e *engine) AddUploadQueue(q UploadQueue) { e.queues = append(e.queues, q) }

func (e *engine) Run(frame func(deltaTime float32) error) (err error) {
	if frame == nil {
		return fmt.Errorf("run frame: %w", common.ErrNullArgument)
	}
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.wg.Add(1)
	go e.handleEngine()
	defer func() {
		e.signalQuit()
		e.wg.Wait()
		e.running.Store(false)
	}()

	// Recover from panics in the frame function so the window and backend can still be closed.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render loop recovered from panic", slog.Any("panic", r))
			err = fmt.Errorf("render loop panic: %v", r)
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return nil
		default:
		}
		if !e.window.PollEvents() {
			return nil
		}

		frameStart := time.Now()
		dt := float32(frameStart.Sub(lastRender).Seconds())
		lastRender = frameStart

		if err := e.renderFrame(dt, frame); err != nil {
			e.logger.Error("frame failed", slog.Uint64("frame", e.renderer.Frame()), slog.Any("error", err))
			return err
		}

		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}
		if e.maxFrames > 0 && e.renderer.Frame() >= e.maxFrames {
			return nil
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame flushes the upload queues and runs one bracketed frame. Upload failures are logged
// and do not end the loop.
func (e *engine) renderFrame(dt float32, frame func(deltaTime float32) error) error {
	for _, q := range e.queues {
		if q.Pending() == 0 {
			continue
		}
		if err := q.Flush(); err != nil {
			e.logger.Warn("staged uploads failed", slog.Any("error", err))
		}
	}

	if err := e.renderer.BeginFrame(); err != nil {
		return err
	}
	frameErr := frame(dt)
	if err := e.renderer.EndFrame(); err != nil {
		return errors.Join(frameErr, err)
	}
	if frameErr != nil {
		return frameErr
	}
	return e.renderer.Present()
}

// Quit signals all engine loops to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.rateMu.Lock()
	rate := e.engineTickRate
	e.rateMu.Unlock()
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.tickMu.Lock()
			cb := e.tickCallback
			e.tickMu.Unlock()
			if cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

func (e *engine) Close() error {
	e.signalQuit()

	var errs []error
	for _, q := range e.queues {
		if err := q.Close(); err != nil && !errors.Is(err, common.ErrDisposed) {
			errs = append(errs, err)
		}
	}
	e.queues = nil

	if e.ownsBackend {
		if r, ok := e.backend.(releaser); ok {
			r.Release()
		}
		e.ownsBackend = false
	}
	if e.ownsWindow {
		if err := e.window.Close(); err != nil {
			errs = append(errs, err)
		}
		e.ownsWindow = false
	}
	return errors.Join(errs...)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)
	e.rateMu.Lock()
	defer e.rateMu.Unlock()
	e.engineTickRate = newRate
	if !e.running.Load() {
		return
	}
	// Replace a pending update rather than block. Only the tick loop receives, so after the
	// drain the buffered send always has room.
	select {
	case <-e.tickRateChannel:
	default:
	}
	e.tickRateChannel <- newRate
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameInterval(fps)
}

// tickInterval converts a tick rate to a ticker interval, defaulting to 60Hz.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// frameInterval converts a frame cap to a minimum frame duration; 0 means uncapped.
func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
