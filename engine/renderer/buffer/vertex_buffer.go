package buffer

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// VertexBuffer is a buffer of interleaved float vertex data bound to common.TargetVertex.
type VertexBuffer = Buffer[float32]

// IndexBuffer is a buffer of indices of width E bound to common.TargetIndex.
type IndexBuffer[E IndexElement] = Buffer[E]

// IndexSource is the element-width independent view of an index buffer that draw calls need.
// Buffer[uint16] and Buffer[uint32] both implement it.
type IndexSource interface {
	Bind() error
	Count() int
	ElementType() common.ElementType
	Disposed() bool
	Mapped() bool
}

var (
	_ IndexSource = Buffer[uint16](nil)
	_ IndexSource = Buffer[uint32](nil)
)

// NewVertexBuffer creates a float vertex buffer.
//
// Parameters:
//   - ctx: the graphics context the buffer belongs to
//   - capacity: the initial capacity in floats
//   - usage: the usage hint storage is allocated with
//   - options: variadic list of BufferBuilderOption functions to configure the buffer
//
// Returns:
//   - VertexBuffer: the new vertex buffer
//   - error: an error if the backend could not create the handle
func NewVertexBuffer(ctx backend.Context, capacity int, usage common.UsageHint, options ...BufferBuilderOption) (VertexBuffer, error) {
	return NewBuffer[float32](ctx, common.TargetVertex, capacity, usage, options...)
}

// NewIndexBuffer creates an index buffer whose indices are E, either uint16 or uint32.
//
// Parameters:
//   - ctx: the graphics context the buffer belongs to
//   - capacity: the initial capacity in indices
//   - usage: the usage hint storage is allocated with
//   - options: variadic list of BufferBuilderOption functions to configure the buffer
//
// Returns:
//   - IndexBuffer[E]: the new index buffer
//   - error: an error if the backend could not create the handle
func NewIndexBuffer[E IndexElement](ctx backend.Context, capacity int, usage common.UsageHint, options ...BufferBuilderOption) (IndexBuffer[E], error) {
	return NewBuffer[E](ctx, common.TargetIndex, capacity, usage, options...)
}
