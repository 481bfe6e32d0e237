// package common contains the closed enumerations and plain value types shared by every layer of the engine. They are not interface-wrapped
// structs, just plain types that express commonly used configuration values.
package common

import (
	"fmt"
	"strings"
)

// UsageHint is a caller-declared access pattern guiding how a backend allocates buffer storage.
// It is the cross product of a frequency (static, dynamic, stream) and a nature (draw, read, copy).
type UsageHint int

const (
	// UsageStaticDraw is written once by the application and drawn many times.
	UsageStaticDraw UsageHint = iota
	UsageStaticRead
	UsageStaticCopy

	// UsageDynamicDraw is rewritten repeatedly by the application and drawn many times.
	UsageDynamicDraw
	UsageDynamicRead
	UsageDynamicCopy

	// UsageStreamDraw is written once and drawn at most a few times.
	UsageStreamDraw
	UsageStreamRead
	UsageStreamCopy
)

var usageHintNames = map[UsageHint]string{
	UsageStaticDraw:  "static_draw",
	UsageStaticRead:  "static_read",
	UsageStaticCopy:  "static_copy",
	UsageDynamicDraw: "dynamic_draw",
	UsageDynamicRead: "dynamic_read",
	UsageDynamicCopy: "dynamic_copy",
	UsageStreamDraw:  "stream_draw",
	UsageStreamRead:  "stream_read",
	UsageStreamCopy:  "stream_copy",
}

func (u UsageHint) String() string {
	if name, ok := usageHintNames[u]; ok {
		return name
	}
	return fmt.Sprintf("UsageHint(%d)", int(u))
}

// Readable reports whether the hint declares that the application reads the buffer back.
func (u UsageHint) Readable() bool {
	return u == UsageStaticRead || u == UsageDynamicRead || u == UsageStreamRead
}

// ParseUsageHint converts a configuration string such as "dynamic_draw" into a UsageHint.
// Matching is case-insensitive and accepts '-' in place of '_'.
//
// Parameters:
//   - s: the usage hint name
//
// Returns:
//   - UsageHint: the parsed hint
//   - error: an error if the name is not one of the nine known hints
func ParseUsageHint(s string) (UsageHint, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for hint, name := range usageHintNames {
		if name == key {
			return hint, nil
		}
	}
	return UsageStaticDraw, fmt.Errorf("unknown usage hint %q", s)
}

// ElementType identifies the scalar or composite type of one component of a vertex attribute,
// and the width of an index buffer element.
type ElementType int

const (
	ElementInt ElementType = iota
	ElementUnsignedInt
	ElementFloat
	ElementDouble
	ElementShort
	ElementUnsignedShort
	ElementVec2
	ElementVec3
	ElementVec4
	ElementMat2
	ElementMat3
	ElementMat4
	ElementQuat
)

// elementTypeInfo holds the byte size and printable name of an ElementType.
type elementTypeInfo struct {
	size int
	name string
}

var elementTypes = map[ElementType]elementTypeInfo{
	ElementInt:           {4, "int"},
	ElementUnsignedInt:   {4, "unsigned_int"},
	ElementFloat:         {4, "float"},
	ElementDouble:        {8, "double"},
	ElementShort:         {2, "short"},
	ElementUnsignedShort: {2, "unsigned_short"},
	ElementVec2:          {8, "vec2"},
	ElementVec3:          {12, "vec3"},
	ElementVec4:          {16, "vec4"},
	ElementMat2:          {16, "mat2"},
	ElementMat3:          {36, "mat3"},
	ElementMat4:          {64, "mat4"},
	ElementQuat:          {16, "quat"},
}

// ByteSize returns the number of bytes occupied by one component of this type.
// Composite types (vectors, matrices, quaternions) report their full tightly packed size.
// Unknown types report 0.
func (t ElementType) ByteSize() int {
	return elementTypes[t].size
}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	_, ok := elementTypes[t]
	return ok
}

func (t ElementType) String() string {
	if info, ok := elementTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// TargetKind identifies a binding point class in the backend.
type TargetKind int

const (
	// TargetVertex is the binding point for vertex buffers.
	TargetVertex TargetKind = iota
	// TargetIndex is the binding point for index buffers.
	TargetIndex
	// TargetVertexArray is the binding point for vertex arrays.
	TargetVertexArray
	// TargetProgram is the binding point for the active shader program.
	TargetProgram
)

func (t TargetKind) String() string {
	switch t {
	case TargetVertex:
		return "vertex"
	case TargetIndex:
		return "index"
	case TargetVertexArray:
		return "vertex_array"
	case TargetProgram:
		return "program"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(t))
	}
}

// Topology is the primitive assembly mode of a draw call.
type Topology int

const (
	TopologyPoints Topology = iota
	TopologyLines
	TopologyLineStrip
	TopologyTriangles
	TopologyTriangleStrip
	TopologyTriangleFan
)

func (t Topology) String() string {
	switch t {
	case TopologyPoints:
		return "points"
	case TopologyLines:
		return "lines"
	case TopologyLineStrip:
		return "line_strip"
	case TopologyTriangles:
		return "triangles"
	case TopologyTriangleStrip:
		return "triangle_strip"
	case TopologyTriangleFan:
		return "triangle_fan"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// StageType identifies a programmable shader stage.
type StageType int

const (
	// StageVertex is the vertex processing stage.
	StageVertex StageType = iota
	// StageFragment is the fragment processing stage, paired with a vertex stage.
	StageFragment
)

func (s StageType) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("StageType(%d)", int(s))
	}
}

// MapAccess declares how a mapping session intends to use backend memory.
type MapAccess int

const (
	MapRead MapAccess = iota
	MapWrite
	MapReadWrite
)
