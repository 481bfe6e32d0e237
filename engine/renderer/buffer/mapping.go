package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// mapping is the implementation of the Mapping interface.
type mapping[E Element] struct {
	elements []E
	cursor   int
	closed   bool
}

// Mapping is an open mapping session over a buffer's storage. It exposes the mapped elements
// directly and a write cursor that the owning buffer commits as its position on Unmap.
// A Mapping is invalid once its buffer is unmapped; further writes return common.ErrNotMapped.
type Mapping[E Element] interface {
	// Elements returns the mapped elements, one per element of capacity. Writes through the slice
	// reach the buffer no later than Unmap. The slice must not be used after Unmap.
	Elements() []E

	// Len returns the number of mapped elements.
	Len() int

	// Cursor returns the element index the next Put writes to.
	Cursor() int

	// Seek moves the cursor to element index i.
	//
	// Parameters:
	//   - i: the new cursor, between 0 and Len() inclusive
	//
	// Returns:
	//   - error: common.ErrCapacityExceeded if i is out of range
	Seek(i int) error

	// Put writes values at the cursor and advances it past them.
	//
	// Parameters:
	//   - values: the elements to write
	//
	// Returns:
	//   - error: common.ErrCapacityExceeded if the values do not fit, in which case nothing is written
	Put(values ...E) error
}

var _ Mapping[float32] = &mapping[float32]{}

func (m *mapping[E]) Elements() []E {
	if m.closed {
		return nil
	}
	return m.elements
}

func (m *mapping[E]) Len() int {
	return len(m.elements)
}

func (m *mapping[E]) Cursor() int {
	return m.cursor
}

func (m *mapping[E]) Seek(i int) error {
	if m.closed {
		return common.ErrNotMapped
	}
	if i < 0 || i > len(m.elements) {
		return fmt.Errorf("seek to %d of %d mapped elements: %w", i, len(m.elements), common.ErrCapacityExceeded)
	}
	m.cursor = i
	return nil
}

func (m *mapping[E]) Put(values ...E) error {
	if m.closed {
		return common.ErrNotMapped
	}
	if m.cursor+len(values) > len(m.elements) {
		return fmt.Errorf("put %d elements at %d of %d mapped elements: %w", len(values), m.cursor, len(m.elements), common.ErrCapacityExceeded)
	}
	copy(m.elements[m.cursor:], values)
	m.cursor += len(values)
	return nil
}

func (m *mapping[E]) close() {
	m.closed = true
	m.elements = nil
}
