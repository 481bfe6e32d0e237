// Package config loads engine settings from a YAML file and turns them into builder options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine"
	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/staging"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// maxConfigSize bounds the size of a configuration file.
const maxConfigSize = 1 << 20

// Config is the on-disk engine configuration. Zero values mean "use the default".
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Engine   EngineConfig   `yaml:"engine"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Staging  StagingConfig  `yaml:"staging"`
}

type LogConfig struct {
	// Level is one of debug, info, warn or error. Empty disables logging.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	MinWidth  int    `yaml:"min_width"`
	MinHeight int    `yaml:"min_height"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
}

type RendererConfig struct {
	// PresentMode is vsync or uncapped.
	PresentMode string `yaml:"present_mode"`
	// MSAA is the sample count, 1 or 4.
	MSAA       int       `yaml:"msaa"`
	ClearColor []float64 `yaml:"clear_color"`
	// DepthTest and RedundantBindSkipping are pointers to distinguish unset from false.
	DepthTest             *bool  `yaml:"depth_test"`
	RedundantBindSkipping *bool  `yaml:"redundant_bind_skipping"`
	Software              bool   `yaml:"software"`
	Label                 string `yaml:"label"`
	// BufferUsage is the default usage hint for buffers the application creates, e.g. static_draw.
	BufferUsage string `yaml:"buffer_usage"`
}

type EngineConfig struct {
	TickRate   float64 `yaml:"tick_rate"`
	FrameLimit float64 `yaml:"frame_limit"`
	MaxFrames  uint64  `yaml:"max_frames"`
}

type ProfilerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	MemStats *bool         `yaml:"mem_stats"`
}

type StagingConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Load reads and validates the configuration file at path.
//
// Parameters:
//   - path: the YAML file to read
//
// Returns:
//   - *Config: the parsed configuration
//   - error: an error if the file cannot be read, is too large, or is invalid
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, maxConfigSize)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration. Unknown fields are rejected.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Config: the parsed configuration
//   - error: a decoding or validation error
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := c.presentMode(); err != nil {
		errs = append(errs, err)
	}
	switch c.Renderer.MSAA {
	case 0, 1, 4:
	default:
		errs = append(errs, fmt.Errorf("renderer.msaa: unsupported sample count %d", c.Renderer.MSAA))
	}
	if n := len(c.Renderer.ClearColor); n != 0 && n != 3 && n != 4 {
		errs = append(errs, fmt.Errorf("renderer.clear_color: want 3 or 4 components, got %d", n))
	}
	for _, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("renderer.clear_color: component %v outside [0, 1]", v))
			break
		}
	}
	if c.Renderer.BufferUsage != "" {
		if _, err := common.ParseUsageHint(c.Renderer.BufferUsage); err != nil {
			errs = append(errs, fmt.Errorf("renderer.buffer_usage: %w", err))
		}
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		errs = append(errs, fmt.Errorf("window: negative size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Engine.TickRate < 0 || c.Engine.FrameLimit < 0 {
		errs = append(errs, errors.New("engine: rates must not be negative"))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (*slog.Level, error) {
	if s == "" {
		return nil, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	return &l, nil
}

func (c *Config) presentMode() (backend.PresentMode, error) {
	switch strings.ToLower(c.Renderer.PresentMode) {
	case "", "vsync":
		return backend.PresentModeVSync, nil
	case "uncapped":
		return backend.PresentModeUncapped, nil
	default:
		return 0, fmt.Errorf("renderer.present_mode: unknown mode %q", c.Renderer.PresentMode)
	}
}

// Logger builds the configured logger writing to w. An empty level returns common.Logger().
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil || level == nil {
		return common.Logger()
	}
	opts := &slog.HandlerOptions{Level: *level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BufferUsage returns the configured default buffer usage, common.UsageStaticDraw when unset.
func (c *Config) BufferUsage() common.UsageHint {
	u, err := common.ParseUsageHint(c.Renderer.BufferUsage)
	if err != nil || c.Renderer.BufferUsage == "" {
		return common.UsageStaticDraw
	}
	return u
}

// WindowOptions returns the window builder options of the configuration.
func (c *Config) WindowOptions() []window.WindowBuilderOption {
	var opts []window.WindowBuilderOption
	if c.Window.Title != "" {
		opts = append(opts, window.WithTitle(c.Window.Title))
	}
	if c.Window.Width > 0 || c.Window.Height > 0 {
		opts = append(opts, window.WithSize(c.Window.Width, c.Window.Height))
	}
	if c.Window.MinWidth > 0 || c.Window.MinHeight > 0 {
		opts = append(opts, window.WithMinSize(c.Window.MinWidth, c.Window.MinHeight))
	}
	if c.Window.MaxWidth > 0 || c.Window.MaxHeight > 0 {
		opts = append(opts, window.WithMaxSize(c.Window.MaxWidth, c.Window.MaxHeight))
	}
	return opts
}

// BackendOptions returns the WebGPU backend builder options of the configuration.
func (c *Config) BackendOptions() []wgpu_backend.WGPUBackendBuilderOption {
	var opts []wgpu_backend.WGPUBackendBuilderOption
	if mode, err := c.presentMode(); err == nil && c.Renderer.PresentMode != "" {
		opts = append(opts, wgpu_backend.WithPresentMode(mode))
	}
	if c.Renderer.MSAA > 0 {
		opts = append(opts, wgpu_backend.WithMSAA(backend.MSAASampleCount(c.Renderer.MSAA)))
	}
	if cc := c.Renderer.ClearColor; len(cc) >= 3 {
		a := 1.0
		if len(cc) == 4 {
			a = cc[3]
		}
		opts = append(opts, wgpu_backend.WithClearColor(color.NRGBA{
			R: uint8(cc[0]*255 + 0.5),
			G: uint8(cc[1]*255 + 0.5),
			B: uint8(cc[2]*255 + 0.5),
			A: uint8(a*255 + 0.5),
		}))
	}
	if c.Renderer.DepthTest != nil {
		opts = append(opts, wgpu_backend.WithDepthTest(*c.Renderer.DepthTest))
	}
	if c.Renderer.Software {
		opts = append(opts, wgpu_backend.WithForceSoftwareRenderer(true))
	}
	return opts
}

// ContextOptions returns the graphics context builder options of the configuration.
func (c *Config) ContextOptions() []backend.ContextBuilderOption {
	var opts []backend.ContextBuilderOption
	if c.Renderer.Label != "" {
		opts = append(opts, backend.WithLabel(c.Renderer.Label))
	}
	if c.Renderer.RedundantBindSkipping != nil {
		opts = append(opts, backend.WithRedundantBindSkipping(*c.Renderer.RedundantBindSkipping))
	}
	return opts
}

// ProfilerOptions returns the profiler builder options of the configuration.
func (c *Config) ProfilerOptions() []profiler.ProfilerBuilderOption {
	var opts []profiler.ProfilerBuilderOption
	if c.Profiler.Interval > 0 {
		opts = append(opts, profiler.WithUpdateInterval(c.Profiler.Interval))
	}
	if c.Profiler.MemStats != nil {
		opts = append(opts, profiler.WithMemStats(*c.Profiler.MemStats))
	}
	return opts
}

// StagerOptions returns the upload stager builder options of the configuration.
func (c *Config) StagerOptions() []staging.StagerBuilderOption {
	return []staging.StagerBuilderOption{
		staging.WithWorkers(c.Staging.Workers),
		staging.WithQueueSize(c.Staging.QueueSize),
		staging.WithIdleTimeout(c.Staging.IdleTimeout),
	}
}

// EngineOptions returns the engine builder options of the configuration, including the window,
// backend, context and profiler options. The logger writes to stderr.
func (c *Config) EngineOptions() []engine.EngineBuilderOption {
	opts := []engine.EngineBuilderOption{
		engine.WithLogger(c.Logger(os.Stderr)),
		engine.WithWindowOptions(c.WindowOptions()...),
		engine.WithBackendOptions(c.BackendOptions()...),
		engine.WithContextOptions(c.ContextOptions()...),
		engine.WithProfilerOptions(c.ProfilerOptions()...),
		engine.WithProfiling(c.Profiler.Enabled),
		engine.WithRenderFrameLimit(c.Engine.FrameLimit),
		engine.WithMaxFrames(c.Engine.MaxFrames),
	}
	if c.Engine.TickRate > 0 {
		opts = append(opts, engine.WithTickRate(c.Engine.TickRate))
	}
	return opts
}
