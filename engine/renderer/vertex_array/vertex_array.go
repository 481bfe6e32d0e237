package vertex_array

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/attribute_map"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/buffer"
)

// Binding is one vertex buffer bound into a VertexArray together with the layout that describes
// it. FirstSlot is the attribute slot of the layout's first attribute.
type Binding struct {
	Buffer    buffer.VertexBuffer
	Layout    attribute_map.AttributeMap
	FirstSlot int
}

// vertexArrayImpl is the implementation of the VertexArray interface.
type vertexArrayImpl struct {
	ctx    backend.Context
	logger *slog.Logger
	label  string
	handle backend.Handle

	bindings []Binding
	nextSlot int
	disposed bool
}

// VertexArray groups vertex buffers and their layouts under one backend handle. Attribute slots
// form a single namespace per array: every attribute of every Put takes the next slot, whichever
// buffer it reads from.
type VertexArray interface {
	// Handle returns the backend handle of the array.
	Handle() backend.Handle

	// Label returns the debug label of the array.
	Label() string

	// Bind makes this array the active draw source.
	//
	// Returns:
	//   - error: common.ErrDisposed after disposal, or a backend error
	Bind() error

	// Unbind deactivates this array if it is the active draw source.
	Unbind() error

	// Put binds vb into the array using layout. Each attribute of the layout, in insertion order,
	// is described on slot NextSlot() and the slot is enabled.
	//
	// On a backend failure the slots enabled by this call are disabled again and NextSlot() is
	// left unchanged.
	//
	// Parameters:
	//   - vb: the vertex buffer the attributes read from
	//   - layout: the record layout of vb, must not be empty
	//
	// Returns:
	//   - error: common.ErrInvalidLayout for an empty layout, common.ErrNullArgument for a nil
	//     buffer, or the error of the failed bind or backend call
	Put(vb buffer.VertexBuffer, layout attribute_map.AttributeMap) error

	// Clear disables every slot allocated so far, forgets the bound buffers and resets NextSlot()
	// to 0. Buffer storage is not released.
	Clear() error

	// Count returns the number of vertices available for drawing: the element count of the first
	// bound buffer divided by the number of elements in one record of its layout. Buffers bound
	// after the first never add to it. An array with no buffers has a count of 0.
	Count() int

	// Bindings returns the bound buffers in Put order.
	Bindings() []Binding

	// NextSlot returns the attribute slot the next Put starts at.
	NextSlot() int

	// Disposed reports whether the array has been released.
	Disposed() bool

	// Drawable checks that the array and every bound buffer can be read by a draw.
	//
	// Returns:
	//   - error: common.ErrDisposed if the array or a bound buffer was released,
	//     common.ErrAlreadyMapped if a bound buffer has an open mapping session
	Drawable() error

	// Dispose releases the backend handle. Bound buffers are not disposed. Disposing twice returns
	// common.ErrDisposed. A failed backend delete leaves the array undisposed and its bindings
	// intact so Dispose can be retried.
	Dispose() error
}

var _ VertexArray = &vertexArrayImpl{}

// NewVertexArray creates an empty vertex array.
//
// Parameters:
//   - ctx: the graphics context the array belongs to
//   - options: variadic list of VertexArrayBuilderOption functions to configure the array
//
// Returns:
//   - VertexArray: the new vertex array
//   - error: an error if the backend could not create the handle
func NewVertexArray(ctx backend.Context, options ...VertexArrayBuilderOption) (VertexArray, error) {
	if ctx == nil {
		return nil, fmt.Errorf("vertex array context: %w", common.ErrNullArgument)
	}
	h, err := ctx.Backend().CreateVertexArray()
	if err != nil {
		return nil, common.WrapBackend("CreateVertexArray", err)
	}

	va := &vertexArrayImpl{
		ctx:    ctx,
		handle: h,
	}
	for _, opt := range options {
		opt(va)
	}
	va.label = common.Coalesce(va.label, fmt.Sprintf("vertex array %d", h))
	va.logger = ctx.Logger().With(slog.String("vertex_array", va.label))
	return va, nil
}

func (va *vertexArrayImpl) Handle() backend.Handle { return va.handle }
func (va *vertexArrayImpl) Label() string          { return va.label }
func (va *vertexArrayImpl) NextSlot() int          { return va.nextSlot }
func (va *vertexArrayImpl) Disposed() bool         { return va.disposed }

func (va *vertexArrayImpl) Bindings() []Binding {
	return append([]Binding(nil), va.bindings...)
}

func (va *vertexArrayImpl) usable(op string) error {
	if va.disposed {
		return fmt.Errorf("%s %s: %w", op, va.label, common.ErrDisposed)
	}
	return nil
}

func (va *vertexArrayImpl) Drawable() error {
	if err := va.usable("draw from"); err != nil {
		return err
	}
	for _, b := range va.bindings {
		switch {
		case b.Buffer.Disposed():
			return fmt.Errorf("draw from %s: buffer %s: %w", va.label, b.Buffer.Label(), common.ErrDisposed)
		case b.Buffer.Mapped():
			return fmt.Errorf("draw from %s: buffer %s: %w", va.label, b.Buffer.Label(), common.ErrAlreadyMapped)
		}
	}
	return nil
}

func (va *vertexArrayImpl) Bind() error {
	if err := va.usable("bind"); err != nil {
		return err
	}
	return va.ctx.BindVertexArray(va.handle)
}

func (va *vertexArrayImpl) Unbind() error {
	if err := va.usable("unbind"); err != nil {
		return err
	}
	if cur, ok := va.ctx.Bindings().Bound(0, common.TargetVertexArray); ok && cur != va.handle {
		return nil
	}
	return va.ctx.BindVertexArray(0)
}

func (va *vertexArrayImpl) Put(vb buffer.VertexBuffer, layout attribute_map.AttributeMap) error {
	if err := va.usable("put"); err != nil {
		return err
	}
	if vb == nil {
		return fmt.Errorf("put into %s: %w", va.label, common.ErrNullArgument)
	}
	if layout == nil || layout.Empty() {
		return fmt.Errorf("put %s into %s with empty layout: %w", vb.Label(), va.label, common.ErrInvalidLayout)
	}
	if err := va.Bind(); err != nil {
		return err
	}
	if err := vb.Bind(); err != nil {
		return err
	}

	b := va.ctx.Backend()
	stride := layout.Stride()
	enabled := make([]int, 0, layout.Len())
	for i, attr := range layout.Attributes() {
		slot := va.nextSlot + i
		if err := b.EnableAttributeSlot(slot); err != nil {
			va.rollback(enabled)
			return common.WrapBackend("EnableAttributeSlot", err)
		}
		enabled = append(enabled, slot)
		if err := b.DescribeAttribute(slot, attr.ComponentCount, attr.ElementType, attr.Normalized, stride, attr.ByteOffset); err != nil {
			va.rollback(enabled)
			return common.WrapBackend("DescribeAttribute", err)
		}
	}

	va.bindings = append(va.bindings, Binding{Buffer: vb, Layout: layout, FirstSlot: va.nextSlot})
	va.nextSlot += len(enabled)
	va.logger.Debug("vertex buffer bound",
		slog.String("buffer", vb.Label()),
		slog.Int("first_slot", va.nextSlot-len(enabled)),
		slog.Int("slots", len(enabled)),
		slog.Int("stride", stride))
	return nil
}

// rollback disables the slots a failed Put had enabled. Failures are logged because the Put
// error is the one the caller needs.
func (va *vertexArrayImpl) rollback(slots []int) {
	for _, slot := range slots {
		if err := va.ctx.Backend().DisableAttributeSlot(slot); err != nil {
			va.logger.Warn("attribute slot rollback failed", slog.Int("slot", slot), slog.Any("error", err))
		}
	}
}

func (va *vertexArrayImpl) Clear() error {
	if err := va.usable("clear"); err != nil {
		return err
	}
	if va.nextSlot == 0 {
		va.bindings = nil
		return nil
	}
	if err := va.Bind(); err != nil {
		return err
	}
	for slot := range va.nextSlot {
		if err := va.ctx.Backend().DisableAttributeSlot(slot); err != nil {
			return common.WrapBackend("DisableAttributeSlot", err)
		}
	}
	va.bindings = nil
	va.nextSlot = 0
	return nil
}

func (va *vertexArrayImpl) Count() int {
	if len(va.bindings) == 0 {
		return 0
	}
	primary := va.bindings[0]
	stride := primary.Layout.Stride()
	if stride == 0 {
		return 0
	}
	return primary.Buffer.Count() * primary.Buffer.ElementSize() / stride
}

func (va *vertexArrayImpl) Dispose() error {
	if va.disposed {
		return fmt.Errorf("dispose %s: %w", va.label, common.ErrDisposed)
	}
	va.ctx.Release(va.handle)
	if err := va.ctx.Backend().DeleteVertexArray(va.handle); err != nil {
		return common.WrapBackend("DeleteVertexArray", err)
	}
	va.disposed = true
	va.bindings = nil
	va.logger.Debug("vertex array disposed")
	return nil
}
