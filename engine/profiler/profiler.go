package profiler

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// Stats is a snapshot of backend traffic.
type Stats struct {
	Frames         uint64
	Uploads        uint64
	UploadBytes    uint64
	UniformUploads uint64
	Binds          uint64
	Draws          uint64
	Failures       uint64
}

// counters is the live, concurrently updated form of Stats.
type counters struct {
	uploads        atomic.Uint64
	uploadBytes    atomic.Uint64
	uniformUploads atomic.Uint64
	binds          atomic.Uint64
	draws          atomic.Uint64
	failures       atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Uploads:        c.uploads.Load(),
		UploadBytes:    c.uploadBytes.Load(),
		UniformUploads: c.uniformUploads.Load(),
		Binds:          c.binds.Load(),
		Draws:          c.draws.Load(),
		Failures:       c.failures.Load(),
	}
}

// Profiler tracks frame rate, backend traffic and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	logger         *slog.Logger
	now            func() time.Time
	updateInterval time.Duration
	bindings       *backend.BindingCache

	counters    counters
	frameCount  uint64
	totalFrames uint64
	lastTime    time.Time
	last        Stats
	interval    Stats

	memStats       runtime.MemStats
	readMem        bool
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = common.Logger()
	}
	p.lastTime = p.now()
	return p
}

// Instrument wraps b so that every upload, uniform upload, bind and draw is counted by this
// profiler. The result implements backend.FrameBackend whenever b does.
//
// Parameters:
//   - b: the backend to wrap
//
// Returns:
//   - backend.Backend: the counting backend, to be passed to backend.NewContext
func (p *Profiler) Instrument(b backend.Backend) backend.Backend {
	ib := &instrumentedBackend{Backend: b, c: &p.counters}
	if fb, ok := b.(backend.FrameBackend); ok {
		return &instrumentedFrameBackend{instrumentedBackend: ib, FrameBackend: fb}
	}
	return ib
}

// Totals returns the counts accumulated since the profiler was created.
func (p *Profiler) Totals() Stats {
	s := p.counters.snapshot()
	s.Frames = p.totalFrames
	return s
}

// Interval returns the counts of the last completed update interval.
func (p *Profiler) Interval() Stats {
	return p.interval
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include FPS, per-interval backend traffic, binding cache hit rate, heap usage,
// allocation rate and GC count/pause times.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	p.totalFrames++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	cur := p.counters.snapshot()
	p.interval = Stats{
		Frames:         p.frameCount,
		Uploads:        cur.Uploads - p.last.Uploads,
		UploadBytes:    cur.UploadBytes - p.last.UploadBytes,
		UniformUploads: cur.UniformUploads - p.last.UniformUploads,
		Binds:          cur.Binds - p.last.Binds,
		Draws:          cur.Draws - p.last.Draws,
		Failures:       cur.Failures - p.last.Failures,
	}
	fps := float64(p.frameCount) / elapsed.Seconds()

	attrs := []any{
		slog.Float64("fps", fps),
		slog.Uint64("draws", p.interval.Draws),
		slog.Uint64("uploads", p.interval.Uploads),
		slog.Uint64("upload_bytes", p.interval.UploadBytes),
		slog.Uint64("uniform_uploads", p.interval.UniformUploads),
		slog.Uint64("binds", p.interval.Binds),
	}
	if p.interval.Failures > 0 {
		attrs = append(attrs, slog.Uint64("failures", p.interval.Failures))
	}
	if p.bindings != nil {
		attrs = append(attrs,
			slog.Uint64("bind_hits", p.bindings.Hits()),
			slog.Uint64("bind_misses", p.bindings.Misses()))
	}
	if p.readMem {
		attrs = append(attrs, p.memAttrs(elapsed)...)
	}
	p.logger.Info("profiler", attrs...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.last = cur
	return true
}

// memAttrs reads the runtime memory statistics and returns heap size, allocation rate and GC
// pauses since the previous read.
func (p *Profiler) memAttrs(elapsed time.Duration) []any {
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc

	return []any{
		slog.Float64("heap_mb", allocMB),
		slog.Float64("alloc_rate_mb_s", allocRateMB),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Uint64("gc_last_us", lastPauseUs),
		slog.Uint64("gc_max_us", maxPauseUs),
		slog.Float64("sys_mb", sysMB),
	}
}

// TrackBindings adds the hit and miss counts of c to the logged statistics, for caches created
// after the profiler.
func (p *Profiler) TrackBindings(c *backend.BindingCache) {
	p.bindings = c
}
