package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// wgslLayout holds the byte size and alignment of a WGSL type in the uniform address space.
type wgslLayout struct {
	size  uint64
	align uint64
}

// wgslUniformLayouts maps the WGSL host-shareable types a uniform block may contain to their
// size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslUniformLayouts = map[string]wgslLayout{
	"f32": {4, 4},
	"i32": {4, 4},
	"u32": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	// matCxR<f32> is C columns of vecR<f32>, each column aligned to vecR.
	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
}

var (
	// wgslStructRegex matches struct declarations and captures the name and body.
	wgslStructRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// wgslMemberRegex matches one struct member: optional attributes, name, colon, type.
	wgslMemberRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// wgslBuiltinRegex matches @builtin(...) attributes.
	wgslBuiltinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// wgslUniformDeclRegex captures group, binding, variable name and type of a uniform declaration
	// such as: @group(0) @binding(0) var<uniform> camera: Camera;
	wgslUniformDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var<\s*uniform\s*>\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	wgslVertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	wgslFragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)
)

// UniformField is one individually settable uniform inside a WGSL uniform block.
type UniformField struct {
	// Name is the struct member name, or the variable name when the block type is not a struct.
	Name string
	// Type is the WGSL type name of the field, e.g. "mat4x4<f32>".
	Type   string
	Offset uint64
	Size   uint64
}

// UniformBlock is one var<uniform> declaration of a WGSL module.
type UniformBlock struct {
	Group   int
	Binding int
	Var     string
	Type    string

	// Size is the byte size of the block, rounded up to 16 bytes as uniform buffers require.
	Size   uint64
	Fields []UniformField
}

// wgslMember is a struct member extracted while parsing.
type wgslMember struct {
	name      string
	typeName  string
	isBuiltin bool
}

// wgslStruct is a struct block extracted while parsing.
type wgslStruct struct {
	name    string
	members []wgslMember
}

// ReflectWGSLUniforms extracts every var<uniform> declaration of a WGSL source along with the byte
// layout of its fields. Blocks are returned sorted by group, then binding. Declarations whose type
// cannot be laid out (unknown or runtime-sized types) are skipped.
//
// Parameters:
//   - source: the WGSL source code
//
// Returns:
//   - []UniformBlock: the reflected uniform blocks
func ReflectWGSLUniforms(source string) []UniformBlock {
	cleaned := stripWGSLComments(source)
	structs := parseWGSLStructs(cleaned)
	byName := make(map[string]wgslStruct, len(structs))
	for _, s := range structs {
		byName[s.name] = s
	}
	layouts := computeWGSLStructLayouts(structs)

	var blocks []UniformBlock
	for _, m := range wgslUniformDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		block := UniformBlock{
			Group:   group,
			Binding: binding,
			Var:     m[3],
			Type:    strings.TrimSpace(m[4]),
		}

		if s, ok := byName[block.Type]; ok {
			fields, layout, ok := layoutWGSLStruct(s, layouts)
			if !ok {
				continue
			}
			block.Fields = fields
			block.Size = roundUpAlign(16, layout.size)
		} else {
			layout, ok := resolveWGSLLayout(block.Type, layouts)
			if !ok {
				continue
			}
			block.Fields = []UniformField{{Name: block.Var, Type: block.Type, Size: layout.size}}
			block.Size = roundUpAlign(16, layout.size)
		}
		blocks = append(blocks, block)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Group != blocks[j].Group {
			return blocks[i].Group < blocks[j].Group
		}
		return blocks[i].Binding < blocks[j].Binding
	})
	return blocks
}

// WGSLEntryPoint returns the name of the entry point function for the given stage, or an empty
// string if the source declares none.
//
// Parameters:
//   - source: the WGSL source code
//   - stage: the stage whose entry point to find
//
// Returns:
//   - string: the entry point name
func WGSLEntryPoint(source string, stage common.StageType) string {
	re := wgslVertexEntryRegex
	if stage == common.StageFragment {
		re = wgslFragmentEntryRegex
	}
	if m := re.FindStringSubmatch(stripWGSLComments(source)); m != nil {
		return m[1]
	}
	return ""
}

// PackUniform encodes value with the byte layout of the WGSL type it is written to.
// mat3x3 columns are padded to 16 bytes. Colors and quaternions pack as vec4.
//
// Parameters:
//   - value: the uniform value
//   - wgslType: the WGSL type of the destination field
//
// Returns:
//   - []byte: the little-endian encoding, exactly the size of the WGSL type
//   - error: an error if the value kind cannot be stored in the WGSL type
func PackUniform(value common.UniformValue, wgslType string) ([]byte, error) {
	mismatch := fmt.Errorf("cannot store %s uniform in WGSL type %s", value.Kind(), wgslType)
	f := value.Floats()

	switch wgslType {
	case "i32", "u32":
		if value.Kind() != common.UniformInt {
			return nil, mismatch
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(value.Int())), nil
	case "f32":
		if value.Kind() != common.UniformFloat {
			return nil, mismatch
		}
	case "vec2<f32>", "vec2f":
		if value.Kind() != common.UniformVec2 {
			return nil, mismatch
		}
	case "vec3<f32>", "vec3f":
		if value.Kind() != common.UniformVec3 {
			return nil, mismatch
		}
	case "vec4<f32>", "vec4f":
		switch value.Kind() {
		case common.UniformVec4, common.UniformColor, common.UniformQuat:
		default:
			return nil, mismatch
		}
	case "mat2x2<f32>", "mat2x2f":
		if value.Kind() != common.UniformMat2 {
			return nil, mismatch
		}
	case "mat3x3<f32>", "mat3x3f":
		if value.Kind() != common.UniformMat3 {
			return nil, mismatch
		}
		padded := make([]float32, 0, 12)
		for col := 0; col < 3; col++ {
			padded = append(padded, f[col*3:col*3+3]...)
			padded = append(padded, 0)
		}
		f = padded
	case "mat4x4<f32>", "mat4x4f":
		if value.Kind() != common.UniformMat4 {
			return nil, mismatch
		}
	default:
		return nil, mismatch
	}

	out := make([]byte, 0, len(f)*4)
	for _, v := range f {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out, nil
}

// roundUpAlign rounds value up to the next multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveWGSLLayout resolves a WGSL type name to its layout using the known primitive types,
// previously laid out structs and fixed-size arrays.
func resolveWGSLLayout(typeName string, structs map[string]wgslLayout) (wgslLayout, bool) {
	if l, ok := wgslUniformLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := structs[typeName]; ok {
		return l, true
	}
	if strings.HasPrefix(typeName, "array<") && strings.HasSuffix(typeName, ">") {
		parts := splitAtTopLevelCommas(typeName[6 : len(typeName)-1])
		if len(parts) != 2 {
			return wgslLayout{}, false
		}
		elem, ok := resolveWGSLLayout(strings.TrimSpace(parts[0]), structs)
		if !ok {
			return wgslLayout{}, false
		}
		n, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return wgslLayout{}, false
		}
		// Array elements in the uniform address space are strided to 16 bytes.
		stride := roundUpAlign(max(elem.align, 16), elem.size)
		return wgslLayout{n * stride, max(elem.align, 16)}, true
	}
	return wgslLayout{}, false
}

// layoutWGSLStruct places each member of s at its aligned offset. Builtin members are skipped.
//
// Returns:
//   - []UniformField: the placed members
//   - wgslLayout: the size and alignment of the struct
//   - bool: false if a member type cannot be resolved
func layoutWGSLStruct(s wgslStruct, structs map[string]wgslLayout) ([]UniformField, wgslLayout, bool) {
	fields := make([]UniformField, 0, len(s.members))
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, m := range s.members {
		if m.isBuiltin {
			continue
		}
		l, ok := resolveWGSLLayout(m.typeName, structs)
		if !ok {
			return nil, wgslLayout{}, false
		}
		offset = roundUpAlign(l.align, offset)
		fields = append(fields, UniformField{Name: m.name, Type: m.typeName, Offset: offset, Size: l.size})
		offset += l.size
		maxAlign = max(maxAlign, l.align)
	}
	return fields, wgslLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeWGSLStructLayouts lays out every parsed struct, resolving structs nested in other structs
// by repeating passes until no further struct can be resolved.
func computeWGSLStructLayouts(structs []wgslStruct) map[string]wgslLayout {
	resolved := make(map[string]wgslLayout, len(structs))
	remaining := append([]wgslStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, s := range remaining {
			if _, l, ok := layoutWGSLStruct(s, resolved); ok {
				resolved[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

// parseWGSLStructs finds every struct block in comment-free WGSL source.
func parseWGSLStructs(source string) []wgslStruct {
	matches := wgslStructRegex.FindAllStringSubmatch(source, -1)
	structs := make([]wgslStruct, 0, len(matches))
	for _, m := range matches {
		s := wgslStruct{name: m[1]}
		for _, part := range splitAtTopLevelCommas(m[2]) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			mm := wgslMemberRegex.FindStringSubmatch(part)
			if mm == nil {
				continue
			}
			s.members = append(s.members, wgslMember{
				name:      mm[1],
				typeName:  strings.TrimSpace(mm[2]),
				isBuiltin: wgslBuiltinRegex.MatchString(part),
			})
		}
		structs = append(structs, s)
	}
	return structs
}

// splitAtTopLevelCommas splits s at commas not nested inside angle brackets, so that
// array<T, N> stays in one piece.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripWGSLComments removes line comments and (nested) block comments from WGSL source.
func stripWGSLComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case source[i] == '/' && source[i+1] == '/' && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
