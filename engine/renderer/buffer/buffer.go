package buffer

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// buffer is the implementation of the Buffer interface.
type buffer[E Element] struct {
	ctx    backend.Context
	logger *slog.Logger
	label  string

	handle   backend.Handle
	target   common.TargetKind
	elemType common.ElementType
	elemSize int
	usage    common.UsageHint

	capacity  int
	position  int
	count     int
	allocated bool
	disposed  bool

	mapping *mapping[E]
}

// Buffer is a typed GPU buffer of elements E bound to one target kind. It tracks a capacity (the
// allocated size in elements), a write position (one past the last element written) and a count
// (the high-water mark of elements ever written since the last full allocation).
//
// Every operation except Dispose is rejected with common.ErrDisposed after disposal. While a
// mapping session is open, every operation other than Unmap and Dispose is rejected with
// common.ErrAlreadyMapped.
type Buffer[E Element] interface {
	// Handle returns the backend handle of the buffer.
	Handle() backend.Handle

	// Label returns the debug label of the buffer.
	Label() string

	// Target returns the binding point class the buffer is bound to.
	Target() common.TargetKind

	// ElementType returns the element type of the buffer.
	ElementType() common.ElementType

	// ElementSize returns the size of one element in bytes.
	ElementSize() int

	// Usage returns the usage hint the buffer allocates storage with.
	Usage() common.UsageHint

	// Capacity returns the allocated size of the buffer in elements.
	Capacity() int

	// Position returns one past the index of the last element written.
	Position() int

	// Count returns the number of valid elements, the high-water mark of written elements.
	Count() int

	// Allocated reports whether backend storage has been allocated.
	Allocated() bool

	// Mapped reports whether a mapping session is open.
	Mapped() bool

	// Disposed reports whether the buffer has been released.
	Disposed() bool

	// Set replaces the whole contents of the buffer with data, reallocating storage to exactly
	// len(data) elements. Capacity, position and count all become len(data).
	//
	// Parameters:
	//   - data: the new contents; nil is rejected with common.ErrNullArgument
	//
	// Returns:
	//   - error: an error if a precondition failed or the backend rejected the upload
	Set(data []E) error

	// Insert writes data starting at element index at. A buffer that was never allocated is sized
	// to max(capacity, at+len(data)) and allocated with data in place; otherwise the write must fit
	// within the current capacity or common.ErrCapacityExceeded is returned without touching the
	// backend. Position becomes at+len(data) and count grows to at least that.
	//
	// Parameters:
	//   - data: the elements to write; nil is rejected with common.ErrNullArgument
	//   - at: the destination element index
	//
	// Returns:
	//   - error: an error if a precondition failed or the backend rejected the upload
	Insert(data []E, at int) error

	// Map opens a mapping session over the whole capacity of the buffer. The session's cursor
	// starts at the current position. Storage is allocated first if the buffer has none.
	//
	// Returns:
	//   - Mapping[E]: the mapping session, valid until Unmap
	//   - error: common.ErrAlreadyMapped if a session is already open
	Map() (Mapping[E], error)

	// Unmap closes the mapping session, committing position = cursor and count = max(count, cursor).
	//
	// Returns:
	//   - error: common.ErrNotMapped if no session is open
	Unmap() error

	// Resize reallocates storage to n elements, discarding the contents. Position and count
	// become 0.
	//
	// Parameters:
	//   - n: the new capacity in elements
	//
	// Returns:
	//   - error: an error if n is negative or the backend rejected the allocation
	Resize(n int) error

	// Bind binds the buffer to its target through the context binding cache.
	Bind() error

	// Unbind unbinds the target if this buffer is bound to it.
	Unbind() error

	// Dispose releases the backend handle. An open mapping session is closed first. Disposing
	// twice returns common.ErrDisposed. A failed backend delete leaves the buffer undisposed so
	// Dispose can be retried.
	Dispose() error
}

var _ Buffer[float32] = &buffer[float32]{}

// NewBuffer creates a buffer of elements E bound to target. The backend handle is created
// immediately; storage is allocated lazily by the first Set, Insert, Map or Resize unless
// WithEagerAllocation is given.
//
// Parameters:
//   - ctx: the graphics context the buffer belongs to
//   - target: common.TargetVertex or common.TargetIndex
//   - capacity: the initial capacity in elements
//   - usage: the usage hint storage is allocated with
//   - options: variadic list of BufferBuilderOption functions to configure the buffer
//
// Returns:
//   - Buffer[E]: the new buffer
//   - error: an error if the capacity is negative or the backend could not create the handle
func NewBuffer[E Element](ctx backend.Context, target common.TargetKind, capacity int, usage common.UsageHint, options ...BufferBuilderOption) (Buffer[E], error) {
	if ctx == nil {
		return nil, fmt.Errorf("buffer context: %w", common.ErrNullArgument)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("negative capacity %d: %w", capacity, common.ErrCapacityExceeded)
	}

	cfg := bufferConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	h, err := ctx.Backend().CreateBuffer()
	if err != nil {
		return nil, common.WrapBackend("CreateBuffer", err)
	}

	b := &buffer[E]{
		ctx:      ctx,
		label:    common.Coalesce(cfg.label, fmt.Sprintf("%s buffer %d", target, h)),
		handle:   h,
		target:   target,
		elemType: elementTypeOf[E](),
		elemSize: common.SizeOf[E](),
		usage:    usage,
		capacity: capacity,
	}
	b.logger = ctx.Logger().With(slog.String("buffer", b.label))

	if cfg.eager {
		if err := b.allocate(capacity, nil); err != nil {
			_ = ctx.Backend().DeleteBuffer(h)
			return nil, err
		}
	}
	return b, nil
}

func (b *buffer[E]) Handle() backend.Handle          { return b.handle }
func (b *buffer[E]) Label() string                   { return b.label }
func (b *buffer[E]) Target() common.TargetKind       { return b.target }
func (b *buffer[E]) ElementType() common.ElementType { return b.elemType }
func (b *buffer[E]) ElementSize() int                { return b.elemSize }
func (b *buffer[E]) Usage() common.UsageHint         { return b.usage }
func (b *buffer[E]) Capacity() int                   { return b.capacity }
func (b *buffer[E]) Position() int                   { return b.position }
func (b *buffer[E]) Count() int                      { return b.count }
func (b *buffer[E]) Allocated() bool                 { return b.allocated }
func (b *buffer[E]) Mapped() bool                    { return b.mapping != nil }
func (b *buffer[E]) Disposed() bool                  { return b.disposed }

// usable checks the preconditions shared by every mutating operation.
func (b *buffer[E]) usable(op string) error {
	if b.disposed {
		return fmt.Errorf("%s %s: %w", op, b.label, common.ErrDisposed)
	}
	if b.mapping != nil {
		return fmt.Errorf("%s %s: %w", op, b.label, common.ErrAlreadyMapped)
	}
	return nil
}

// bind binds the buffer without checking the mapping state; Unmap needs the binding while mapped.
func (b *buffer[E]) bind() error {
	return b.ctx.BindBuffer(b.target, b.handle)
}

// allocate binds the buffer and (re)allocates storage of n elements initialized with data.
func (b *buffer[E]) allocate(n int, data []E) error {
	if err := b.bind(); err != nil {
		return err
	}
	if err := b.ctx.Backend().UploadFull(b.target, n*b.elemSize, common.ToBytes(data), b.usage); err != nil {
		return common.WrapBackend("UploadFull", err)
	}
	b.allocated = true
	b.logger.Debug("buffer storage allocated",
		slog.Int("elements", n),
		slog.Int("bytes", n*b.elemSize),
		slog.String("usage", b.usage.String()))
	return nil
}

func (b *buffer[E]) Set(data []E) error {
	if err := b.usable("set"); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("set %s: %w", b.label, common.ErrNullArgument)
	}
	if err := b.allocate(len(data), data); err != nil {
		return err
	}
	b.capacity = len(data)
	b.position = len(data)
	b.count = len(data)
	return nil
}

func (b *buffer[E]) Insert(data []E, at int) error {
	if err := b.usable("insert"); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("insert %s: %w", b.label, common.ErrNullArgument)
	}
	if at < 0 {
		return fmt.Errorf("insert %s at negative index %d: %w", b.label, at, common.ErrCapacityExceeded)
	}
	end := at + len(data)

	if !b.allocated {
		n := max(b.capacity, end)
		contents := make([]E, n)
		copy(contents[at:], data)
		if err := b.allocate(n, contents); err != nil {
			return err
		}
		b.capacity = n
	} else {
		if end > b.capacity {
			return fmt.Errorf("insert %d elements at %d into %s of capacity %d: %w", len(data), at, b.label, b.capacity, common.ErrCapacityExceeded)
		}
		if err := b.bind(); err != nil {
			return err
		}
		if err := b.ctx.Backend().UploadRange(b.target, at*b.elemSize, common.ToBytes(data)); err != nil {
			return common.WrapBackend("UploadRange", err)
		}
	}

	b.position = end
	b.count = max(b.count, end)
	return nil
}

func (b *buffer[E]) Map() (Mapping[E], error) {
	if err := b.usable("map"); err != nil {
		return nil, err
	}
	if !b.allocated {
		if err := b.allocate(b.capacity, nil); err != nil {
			return nil, err
		}
	} else if err := b.bind(); err != nil {
		return nil, err
	}

	view, err := b.ctx.Backend().MapRange(b.target, 0, b.capacity*b.elemSize, common.MapReadWrite)
	if err != nil {
		return nil, common.WrapBackend("MapRange", err)
	}
	b.mapping = &mapping[E]{
		elements: common.FromBytes[E](view),
		cursor:   b.position,
	}
	return b.mapping, nil
}

func (b *buffer[E]) Unmap() error {
	if b.disposed {
		return fmt.Errorf("unmap %s: %w", b.label, common.ErrDisposed)
	}
	if b.mapping == nil {
		return fmt.Errorf("unmap %s: %w", b.label, common.ErrNotMapped)
	}
	m := b.mapping
	if err := b.bind(); err != nil {
		return err
	}
	if err := b.ctx.Backend().Unmap(b.target); err != nil {
		return common.WrapBackend("Unmap", err)
	}
	m.close()
	b.mapping = nil
	b.position = m.cursor
	b.count = max(b.count, m.cursor)
	return nil
}

func (b *buffer[E]) Resize(n int) error {
	if err := b.usable("resize"); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("resize %s to negative capacity %d: %w", b.label, n, common.ErrCapacityExceeded)
	}
	if err := b.allocate(n, nil); err != nil {
		return err
	}
	b.capacity = n
	b.position = 0
	b.count = 0
	return nil
}

func (b *buffer[E]) Bind() error {
	if err := b.usable("bind"); err != nil {
		return err
	}
	return b.bind()
}

func (b *buffer[E]) Unbind() error {
	if err := b.usable("unbind"); err != nil {
		return err
	}
	if cur, ok := b.ctx.Bindings().Bound(0, b.target); ok && cur != b.handle {
		return nil
	}
	return b.ctx.BindBuffer(b.target, 0)
}

func (b *buffer[E]) Dispose() error {
	if b.disposed {
		return fmt.Errorf("dispose %s: %w", b.label, common.ErrDisposed)
	}
	if b.mapping != nil {
		if err := b.Unmap(); err != nil {
			b.logger.Warn("unmap on dispose failed", slog.Any("error", err))
			b.mapping.close()
			b.mapping = nil
		}
	}
	b.ctx.Release(b.handle)
	if err := b.ctx.Backend().DeleteBuffer(b.handle); err != nil {
		return common.WrapBackend("DeleteBuffer", err)
	}
	b.disposed = true
	b.logger.Debug("buffer disposed")
	return nil
}
