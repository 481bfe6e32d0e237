package attribute_map

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Reserved attribute names used by the Put* shorthands.
const (
	NamePosition = "position"
	NameTexcoord = "texcoord"
	NameColor    = "color"
	NameNormal   = "normal"
)

// Attribute describes one named field of an interleaved vertex record. It is a plain value; the
// AttributeMap that created it never changes it afterwards.
type Attribute struct {
	Name           string
	ElementType    common.ElementType
	ComponentCount int
	// ByteOffset is the offset of the field from the start of the record.
	ByteOffset int
	Normalized bool
}

// Size returns the byte size of the field within one record.
func (a Attribute) Size() int {
	return a.ComponentCount * a.ElementType.ByteSize()
}

// attributeMapImpl is the implementation of the AttributeMap interface.
type attributeMapImpl struct {
	entries []Attribute
	index   map[string]int
	stride  int
	count   int
	logger  *slog.Logger
}

// AttributeMap is an ordered collection of named attributes laid out back to back in one vertex
// record. Offsets are assigned in insertion order with no alignment padding.
//
// Putting a name that already exists replaces the entry at its original ordinal with a new
// attribute placed at the current end of the record. Offsets of other entries are never
// rewritten, so the bytes the replaced attribute occupied stay part of the stride.
type AttributeMap interface {
	// Put appends an attribute at the current stride.
	//
	// Parameters:
	//   - name: the attribute name, unique within the map
	//   - elementType: the type of each component
	//   - componentCount: the number of components, at least 1
	//   - normalized: whether integer components are normalized when read
	//
	// Returns:
	//   - Attribute: the created attribute
	//   - error: common.ErrInvalidLayout if the name is empty, the count is below 1 or the
	//     element type is unknown
	Put(name string, elementType common.ElementType, componentCount int, normalized bool) (Attribute, error)

	// PutPosition puts a float attribute named "position".
	PutPosition(componentCount int) (Attribute, error)

	// PutTexcoord puts a float attribute named "texcoord".
	PutTexcoord(componentCount int) (Attribute, error)

	// PutColor puts a float attribute named "color".
	PutColor(componentCount int) (Attribute, error)

	// PutNormal puts a float attribute named "normal".
	PutNormal(componentCount int) (Attribute, error)

	// At returns the attribute at insertion ordinal i.
	//
	// Parameters:
	//   - i: the ordinal, between 0 and Len()-1
	//
	// Returns:
	//   - Attribute: the attribute
	//   - bool: false if i is out of range
	At(i int) (Attribute, bool)

	// Get returns the attribute with the given name.
	Get(name string) (Attribute, bool)

	// Names returns the attribute names in insertion order.
	Names() []string

	// Attributes returns a copy of the attributes in insertion order.
	Attributes() []Attribute

	// Len returns the number of attributes.
	Len() int

	// Stride returns the byte size of one vertex record.
	Stride() int

	// Count returns the total number of components of one vertex record. Like Stride, it still
	// includes the components of attributes that were later replaced, so it can exceed the sum
	// over Attributes().
	Count() int

	// Empty reports whether the map has no attributes.
	Empty() bool
}

var _ AttributeMap = &attributeMapImpl{}

// NewAttributeMap creates an empty AttributeMap.
//
// Parameters:
//   - options: variadic list of AttributeMapBuilderOption functions to configure the map
//
// Returns:
//   - AttributeMap: the new attribute map
func NewAttributeMap(options ...AttributeMapBuilderOption) AttributeMap {
	m := &attributeMapImpl{
		index: make(map[string]int),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.logger == nil {
		m.logger = common.Logger()
	}
	return m
}

func (m *attributeMapImpl) Put(name string, elementType common.ElementType, componentCount int, normalized bool) (Attribute, error) {
	if name == "" {
		return Attribute{}, fmt.Errorf("attribute name is empty: %w", common.ErrInvalidLayout)
	}
	if componentCount < 1 {
		return Attribute{}, fmt.Errorf("attribute %q has %d components: %w", name, componentCount, common.ErrInvalidLayout)
	}
	if !elementType.Valid() {
		return Attribute{}, fmt.Errorf("attribute %q has unknown element type %s: %w", name, elementType, common.ErrInvalidLayout)
	}

	a := Attribute{
		Name:           name,
		ElementType:    elementType,
		ComponentCount: componentCount,
		ByteOffset:     m.stride,
		Normalized:     normalized,
	}
	if i, ok := m.index[name]; ok {
		m.logger.Warn("attribute replaced",
			slog.String("name", name),
			slog.Int("old_offset", m.entries[i].ByteOffset),
			slog.Int("new_offset", a.ByteOffset))
		m.entries[i] = a
	} else {
		m.index[name] = len(m.entries)
		m.entries = append(m.entries, a)
	}
	m.stride += a.Size()
	m.count += componentCount
	return a, nil
}

func (m *attributeMapImpl) PutPosition(componentCount int) (Attribute, error) {
	return m.Put(NamePosition, common.ElementFloat, componentCount, false)
}

func (m *attributeMapImpl) PutTexcoord(componentCount int) (Attribute, error) {
	return m.Put(NameTexcoord, common.ElementFloat, componentCount, false)
}

func (m *attributeMapImpl) PutColor(componentCount int) (Attribute, error) {
	return m.Put(NameColor, common.ElementFloat, componentCount, false)
}

func (m *attributeMapImpl) PutNormal(componentCount int) (Attribute, error) {
	return m.Put(NameNormal, common.ElementFloat, componentCount, false)
}

func (m *attributeMapImpl) At(i int) (Attribute, bool) {
	if i < 0 || i >= len(m.entries) {
		return Attribute{}, false
	}
	return m.entries[i], true
}

func (m *attributeMapImpl) Get(name string) (Attribute, bool) {
	i, ok := m.index[name]
	if !ok {
		return Attribute{}, false
	}
	return m.entries[i], true
}

func (m *attributeMapImpl) Names() []string {
	names := make([]string, len(m.entries))
	for i, a := range m.entries {
		names[i] = a.Name
	}
	return names
}

func (m *attributeMapImpl) Attributes() []Attribute {
	return append([]Attribute(nil), m.entries...)
}

func (m *attributeMapImpl) Len() int    { return len(m.entries) }
func (m *attributeMapImpl) Stride() int { return m.stride }
func (m *attributeMapImpl) Count() int  { return m.count }
func (m *attributeMapImpl) Empty() bool { return len(m.entries) == 0 }
