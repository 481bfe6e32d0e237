package buffer

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Element is the set of element types a Buffer can hold: floats for vertex data and unsigned
// integers for indices.
type Element interface {
	~float32 | ~uint16 | ~uint32
}

// IndexElement is the set of index widths an index buffer can hold.
type IndexElement interface {
	~uint16 | ~uint32
}

// elementTypeOf returns the ElementType describing E.
func elementTypeOf[E Element]() common.ElementType {
	var half E = 1
	half /= 2
	if half != 0 {
		return common.ElementFloat
	}
	if common.SizeOf[E]() == 2 {
		return common.ElementUnsignedShort
	}
	return common.ElementUnsignedInt
}
