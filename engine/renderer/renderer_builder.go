package renderer

import "log/slog"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger of the renderer. When not specified the context's logger is used.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = l
	}
}

// WithoutFrames makes the renderer ignore the backend's surface, so BeginFrame, EndFrame, Present
// and Resize only count frames. Useful when another owner drives the surface.
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithoutFrames() RendererBuilderOption {
	return func(r *renderer) {
		r.frames = nil
	}
}
