package wgpu_backend

import (
	"image/color"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUBackendBuilderOption is a functional option applied to the WebGPU backend during
// construction via NewWGPUBackend.
type WGPUBackendBuilderOption func(*wgpuBackendImpl)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the present mode option to the backend
func WithPresentMode(mode backend.PresentMode) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		if mode == backend.PresentModeUncapped {
			b.presentMode = wgpu.PresentModeImmediate
		} else {
			b.presentMode = wgpu.PresentModeFifo
		}
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the main render target.
// When not specified, the default is MSAA4x.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the MSAA option to the backend
func WithMSAA(count backend.MSAASampleCount) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WebGPU to use a CPU fallback adapter instead of a hardware GPU.
// This requires a software Vulkan ICD such as lavapipe or SwiftShader.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the option to the backend
func WithForceSoftwareRenderer(force bool) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color the main render target is cleared to at the start of every frame.
func WithClearColor(c color.Color) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		b.clearColor = wgpu.Color{
			R: float64(n.R) / 255,
			G: float64(n.G) / 255,
			B: float64(n.B) / 255,
			A: float64(n.A) / 255,
		}
	}
}

// WithDepthTest enables or disables depth testing and depth writes for every pipeline. Enabled by default.
func WithDepthTest(enabled bool) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.depthTest = enabled
	}
}

// WithLogger sets the logger the backend reports adapter selection and surface errors to.
func WithLogger(l *slog.Logger) WGPUBackendBuilderOption {
	return func(b *wgpuBackendImpl) {
		b.logger = l
	}
}
