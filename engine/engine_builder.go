package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfilerOptions configures the engine's profiler.
func WithProfilerOptions(options ...profiler.ProfilerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.profilerOptions = append(e.profilerOptions, options...)
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameInterval(fps)
	}
}

// WithMaxFrames makes Run return after n frames. Zero runs until the window closes.
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The engine does not close a supplied window.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithWindowOptions configures the window the engine creates. Ignored when WithWindow is used.
func WithWindowOptions(options ...window.WindowBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.windowOptions = append(e.windowOptions, options...)
	}
}

// WithBackend sets the backend the engine draws through instead of creating a WebGPU backend for
// its window. The engine does not release a supplied backend.
//
// Parameters:
//   - b: the backend, for example backend.NewRecordingBackend() for headless runs
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(b backend.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.backend = b
	}
}

// WithBackendOptions configures the WebGPU backend the engine creates. Ignored when WithBackend
// is used.
func WithBackendOptions(options ...wgpu_backend.WGPUBackendBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.backendOptions = append(e.backendOptions, options...)
	}
}

// WithContextOptions configures the graphics context.
func WithContextOptions(options ...backend.ContextBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.contextOptions = append(e.contextOptions, options...)
	}
}

// WithUploadQueue registers a queue that the render loop flushes before each frame.
func WithUploadQueue(q UploadQueue) EngineBuilderOption {
	return func(e *engine) {
		e.queues = append(e.queues, q)
	}
}

// WithLogger sets the logger of the engine, its context, renderer and profiler. When not
// specified common.Logger() is used.
func WithLogger(l *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = l
	}
}
