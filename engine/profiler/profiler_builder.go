package profiler

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// ProfilerBuilderOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often Tick logs statistics.
//
// Parameters:
//   - d: the interval, values of zero or below are ignored
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option to a profiler
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithLogger sets the logger statistics are written to at Info level.
func WithLogger(l *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = l
	}
}

// WithBindingCache adds the hit and miss counts of a context's binding cache to the statistics.
//
// Parameters:
//   - c: the binding cache, usually ctx.Bindings()
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the binding cache option to a profiler
func WithBindingCache(c *backend.BindingCache) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.bindings = c
	}
}

// WithMemStats enables or disables reading runtime memory statistics on each logged tick.
// Enabled by default.
func WithMemStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
