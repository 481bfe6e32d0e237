package renderer

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/vertex_array"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	ctx    backend.Context
	logger *slog.Logger

	// frames is nil when the backend draws without a surface.
	frames  backend.FrameBackend
	inFrame bool
	frame   uint64
}

// Renderer issues draw calls for vertex arrays and brackets them in frames when the backend
// presents to a surface.
type Renderer interface {
	// Context returns the graphics context draws are issued through.
	Context() backend.Context

	// Render binds va and draws va.Count() vertices starting at vertex 0. An array with no vertices
	// issues no draw.
	//
	// Parameters:
	//   - topology: the primitive assembly mode
	//   - va: the vertex array to draw
	//
	// Returns:
	//   - error: common.ErrNullArgument, common.ErrDisposed if va or one of its buffers was released,
	//     common.ErrAlreadyMapped if one of its buffers is mapped, or a backend error
	Render(topology common.Topology, va vertex_array.VertexArray) error

	// RenderIndexed binds va and ib and draws ib.Count() indices of ib's element type. An empty
	// index buffer issues no draw.
	//
	// Parameters:
	//   - topology: the primitive assembly mode
	//   - va: the vertex array the indices refer to
	//   - ib: the index buffer, a Buffer[uint16] or Buffer[uint32]
	//
	// Returns:
	//   - error: common.ErrNullArgument, common.ErrDisposed, common.ErrAlreadyMapped, or a backend error
	RenderIndexed(topology common.Topology, va vertex_array.VertexArray, ib buffer.IndexSource) error

	// BeginFrame starts a frame. It does nothing on a backend without a surface.
	BeginFrame() error

	// EndFrame submits the frame started by BeginFrame.
	EndFrame() error

	// Present presents the last submitted frame.
	Present() error

	// Resize reconfigures the surface for a new size in pixels.
	Resize(width, height int)

	// Frame returns the number of frames ended so far.
	Frame() uint64
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing through ctx. Frame bracketing is forwarded when the
// context's backend implements backend.FrameBackend.
//
// Parameters:
//   - ctx: the graphics context to draw through
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
//   - error: common.ErrNullArgument if ctx is nil
func NewRenderer(ctx backend.Context, options ...RendererBuilderOption) (Renderer, error) {
	if ctx == nil {
		return nil, fmt.Errorf("renderer context: %w", common.ErrNullArgument)
	}
	r := &renderer{ctx: ctx}
	if fb, ok := ctx.Backend().(backend.FrameBackend); ok {
		r.frames = fb
	}
	for _, opt := range options {
		opt(r)
	}
	if r.logger == nil {
		r.logger = ctx.Logger()
	}
	r.logger.Debug("renderer created", slog.Bool("frames", r.frames != nil))
	return r, nil
}

func (r *renderer) Context() backend.Context {
	return r.ctx
}

func (r *renderer) Frame() uint64 {
	return r.frame
}

func (r *renderer) bindArray(va vertex_array.VertexArray) error {
	if va == nil {
		return fmt.Errorf("render vertex array: %w", common.ErrNullArgument)
	}
	if err := va.Drawable(); err != nil {
		return err
	}
	if err := va.Bind(); err != nil {
		return fmt.Errorf("bind %s: %w", va.Label(), err)
	}
	return nil
}

func (r *renderer) Render(topology common.Topology, va vertex_array.VertexArray) error {
	if err := r.bindArray(va); err != nil {
		return err
	}
	n := va.Count()
	if n == 0 {
		return nil
	}
	if err := r.ctx.Backend().Draw(topology, 0, n); err != nil {
		return common.WrapBackend("Draw", err)
	}
	return nil
}

func (r *renderer) RenderIndexed(topology common.Topology, va vertex_array.VertexArray, ib buffer.IndexSource) error {
	if ib == nil {
		return fmt.Errorf("render index buffer: %w", common.ErrNullArgument)
	}
	if ib.Disposed() {
		return fmt.Errorf("render index buffer: %w", common.ErrDisposed)
	}
	if ib.Mapped() {
		return fmt.Errorf("render index buffer: %w", common.ErrAlreadyMapped)
	}
	if err := r.bindArray(va); err != nil {
		return err
	}
	if err := ib.Bind(); err != nil {
		return err
	}
	n := ib.Count()
	if n == 0 {
		return nil
	}
	if err := r.ctx.Backend().DrawIndexed(topology, ib.ElementType(), n); err != nil {
		return common.WrapBackend("DrawIndexed", err)
	}
	return nil
}

func (r *renderer) BeginFrame() error {
	if r.frames == nil {
		return nil
	}
	if err := r.frames.BeginFrame(); err != nil {
		return common.WrapBackend("BeginFrame", err)
	}
	r.inFrame = true
	return nil
}

func (r *renderer) EndFrame() error {
	if r.frames == nil {
		r.frame++
		return nil
	}
	if !r.inFrame {
		return nil
	}
	r.inFrame = false
	if err := r.frames.EndFrame(); err != nil {
		return common.WrapBackend("EndFrame", err)
	}
	r.frame++
	return nil
}

func (r *renderer) Present() error {
	if r.frames == nil {
		return nil
	}
	if err := r.frames.Present(); err != nil {
		return common.WrapBackend("Present", err)
	}
	return nil
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		// Minimised windows report a zero size; keep the last surface configuration.
		return
	}
	if r.frames != nil {
		r.frames.Resize(width, height)
	}
	r.logger.Debug("renderer resized", slog.Int("width", width), slog.Int("height", height))
}
