package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/config"
)

const full = `
log:
  level: debug
  format: json
window:
  title: Triangle
  width: 800
  height: 600
  min_width: 320
  min_height: 240
renderer:
  present_mode: uncapped
  msaa: 4
  clear_color: [0.1, 0.2, 0.3]
  depth_test: false
  redundant_bind_skipping: false
  label: main
  buffer_usage: dynamic-draw
engine:
  tick_rate: 120
  frame_limit: 144
  max_frames: 10
profiler:
  enabled: true
  interval: 500ms
  mem_stats: false
staging:
  workers: 2
  queue_size: 64
  idle_timeout: 2s
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(full))
	require.NoError(t, err)

	assert.Equal(t, "Triangle", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 4, cfg.Renderer.MSAA)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, cfg.Renderer.ClearColor)
	require.NotNil(t, cfg.Renderer.DepthTest)
	assert.False(t, *cfg.Renderer.DepthTest)
	assert.Equal(t, 500*time.Millisecond, cfg.Profiler.Interval)
	assert.Equal(t, 2*time.Second, cfg.Staging.IdleTimeout)
	assert.Equal(t, uint64(10), cfg.Engine.MaxFrames)
	assert.Equal(t, common.UsageDynamicDraw, cfg.BufferUsage())

	assert.Len(t, cfg.WindowOptions(), 3)
	assert.Len(t, cfg.BackendOptions(), 4)
	assert.Len(t, cfg.ContextOptions(), 2)
	assert.Len(t, cfg.ProfilerOptions(), 2)
	assert.Len(t, cfg.StagerOptions(), 3)
	assert.Len(t, cfg.EngineOptions(), 9)
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.WindowOptions())
	assert.Empty(t, cfg.BackendOptions())
	assert.Empty(t, cfg.ContextOptions())
	assert.Equal(t, common.UsageStaticDraw, cfg.BufferUsage())
	assert.Same(t, common.Logger(), cfg.Logger(&bytes.Buffer{}))
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	cfg, err := config.Parse([]byte("log:\n  level: warn\n  format: json\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	l := cfg.Logger(&out)
	l.Info("hidden")
	l.Warn("shown", "k", 1)

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "window:\n  colour: red\n",
		"level":          "log:\n  level: loud\n",
		"format":         "log:\n  format: xml\n",
		"present mode":   "renderer:\n  present_mode: mailbox\n",
		"msaa":           "renderer:\n  msaa: 3\n",
		"clear color":    "renderer:\n  clear_color: [1, 1]\n",
		"color range":    "renderer:\n  clear_color: [2, 0, 0]\n",
		"buffer usage":   "renderer:\n  buffer_usage: forever\n",
		"negative size":  "window:\n  width: -1\n",
		"negative rate":  "engine:\n  tick_rate: -5\n",
		"malformed yaml": "window: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yml")
	require.NoError(t, os.WriteFile(path, []byte(full), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Renderer.Label)

	_, err = config.Load(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)

	big := filepath.Join(dir, "big.yml")
	require.NoError(t, os.WriteFile(big, []byte("# "+strings.Repeat("x", 1<<20)), 0o600))
	_, err = config.Load(big)
	require.ErrorContains(t, err, "exceeds")
}
