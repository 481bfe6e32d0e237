package wgpu_backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// gpuBuffer is a buffer name together with its CPU shadow copy. WebGPU only accepts 4-byte aligned
// writes and has no synchronous mapping, so every write lands in the shadow first and the touched
// range, widened to 4-byte bounds, is then copied to the GPU.
type gpuBuffer struct {
	gpu *wgpu.Buffer

	// shadow is len(size rounded up to 4); size is the allocated size in bytes.
	shadow    []byte
	size      int
	allocated bool
	usage     common.UsageHint

	mapped    bool
	mapOffset int
	mapSize   int
	mapAccess common.MapAccess
}

// attributeSlot is the state of one attribute slot of a vertex array.
type attributeSlot struct {
	enabled    bool
	buffer     backend.Handle
	count      int
	elemType   common.ElementType
	normalized bool
	stride     int
	offset     int
}

type vertexArray struct {
	slots map[int]*attributeSlot
}

type shaderStage struct {
	stage    common.StageType
	source   string
	module   *wgpu.ShaderModule
	entry    string
	compiled bool
}

// uniformBinding is one reflected var<uniform> block backed by a GPU uniform buffer.
type uniformBinding struct {
	block  backend.UniformBlock
	buffer *wgpu.Buffer
}

// uniformRef resolves a uniform location to the block and field it writes.
type uniformRef struct {
	binding int
	field   backend.UniformField
}

type program struct {
	stages []backend.Handle
	linked bool

	vertex   *shaderStage
	fragment *shaderStage

	bindings     []*uniformBinding
	uniforms     map[string]backend.Location
	refs         []uniformRef
	groupLayouts []*wgpu.BindGroupLayout
	bindGroups   []*wgpu.BindGroup
	layout       *wgpu.PipelineLayout
	pipelines    map[string]*wgpu.RenderPipeline
}

// vertexStream is one vertex buffer layout of a draw, gathered from the enabled attribute slots
// that read the same buffer with the same stride.
type vertexStream struct {
	buffer backend.Handle
	layout wgpu.VertexBufferLayout
}

// wgpuTopology maps a draw topology to its WebGPU primitive topology. Triangle fans have no
// WebGPU equivalent.
func wgpuTopology(t common.Topology) (wgpu.PrimitiveTopology, error) {
	switch t {
	case common.TopologyPoints:
		return wgpu.PrimitiveTopologyPointList, nil
	case common.TopologyLines:
		return wgpu.PrimitiveTopologyLineList, nil
	case common.TopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, nil
	case common.TopologyTriangles:
		return wgpu.PrimitiveTopologyTriangleList, nil
	case common.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, nil
	default:
		return 0, fmt.Errorf("topology %s is not supported by WebGPU", t)
	}
}

func isStrip(t wgpu.PrimitiveTopology) bool {
	return t == wgpu.PrimitiveTopologyLineStrip || t == wgpu.PrimitiveTopologyTriangleStrip
}

// wgpuIndexFormat maps an index element type to its WebGPU index format.
func wgpuIndexFormat(t common.ElementType) (wgpu.IndexFormat, error) {
	switch t {
	case common.ElementUnsignedShort:
		return wgpu.IndexFormatUint16, nil
	case common.ElementUnsignedInt:
		return wgpu.IndexFormatUint32, nil
	default:
		return wgpu.IndexFormatUndefined, fmt.Errorf("index type %s is not supported by WebGPU", t)
	}
}

// vertexFormatKey identifies an attribute description that maps to one WebGPU vertex format.
type vertexFormatKey struct {
	elemType   common.ElementType
	count      int
	normalized bool
}

var vertexFormats = map[vertexFormatKey]wgpu.VertexFormat{
	{common.ElementFloat, 1, false}: wgpu.VertexFormatFloat32,
	{common.ElementFloat, 2, false}: wgpu.VertexFormatFloat32x2,
	{common.ElementFloat, 3, false}: wgpu.VertexFormatFloat32x3,
	{common.ElementFloat, 4, false}: wgpu.VertexFormatFloat32x4,
	{common.ElementVec2, 1, false}:  wgpu.VertexFormatFloat32x2,
	{common.ElementVec3, 1, false}:  wgpu.VertexFormatFloat32x3,
	{common.ElementVec4, 1, false}:  wgpu.VertexFormatFloat32x4,
	{common.ElementQuat, 1, false}:  wgpu.VertexFormatFloat32x4,

	{common.ElementInt, 1, false}: wgpu.VertexFormatSint32,
	{common.ElementInt, 2, false}: wgpu.VertexFormatSint32x2,
	{common.ElementInt, 3, false}: wgpu.VertexFormatSint32x3,
	{common.ElementInt, 4, false}: wgpu.VertexFormatSint32x4,

	{common.ElementUnsignedInt, 1, false}: wgpu.VertexFormatUint32,
	{common.ElementUnsignedInt, 2, false}: wgpu.VertexFormatUint32x2,
	{common.ElementUnsignedInt, 3, false}: wgpu.VertexFormatUint32x3,
	{common.ElementUnsignedInt, 4, false}: wgpu.VertexFormatUint32x4,

	{common.ElementShort, 2, false}:         wgpu.VertexFormatSint16x2,
	{common.ElementShort, 4, false}:         wgpu.VertexFormatSint16x4,
	{common.ElementShort, 2, true}:          wgpu.VertexFormatSnorm16x2,
	{common.ElementShort, 4, true}:          wgpu.VertexFormatSnorm16x4,
	{common.ElementUnsignedShort, 2, false}: wgpu.VertexFormatUint16x2,
	{common.ElementUnsignedShort, 4, false}: wgpu.VertexFormatUint16x4,
	{common.ElementUnsignedShort, 2, true}:  wgpu.VertexFormatUnorm16x2,
	{common.ElementUnsignedShort, 4, true}:  wgpu.VertexFormatUnorm16x4,
}

// vertexFormat maps an attribute description to a WebGPU vertex format. Normalization is ignored
// for float types. Doubles and matrices cannot be vertex inputs in WebGPU.
func vertexFormat(elemType common.ElementType, count int, normalized bool) (wgpu.VertexFormat, error) {
	switch elemType {
	case common.ElementFloat, common.ElementVec2, common.ElementVec3, common.ElementVec4, common.ElementQuat:
		normalized = false
	}
	if f, ok := vertexFormats[vertexFormatKey{elemType, count, normalized}]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("no WebGPU vertex format for %d x %s (normalized=%t)", count, elemType, normalized)
}

// alphaBlend is standard non-premultiplied alpha blending.
var alphaBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// align4 rounds n up to a multiple of 4, the copy alignment of WebGPU buffer writes.
func align4(n int) int {
	return (n + 3) &^ 3
}
