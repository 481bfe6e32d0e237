package backend_test

import (
	"encoding/binary"
	"math"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

const testWGSL = `
// Per-frame data.
struct Light {
    position: vec3<f32>,
    intensity: f32,
}

struct Frame {
    view_proj: mat4x4<f32>,
    /* nested /* block */ comment */
    lights: array<Light, 2>,
    @builtin(position) clip: vec4<f32>,
    normal_matrix: mat3x3<f32>,
    exposure: f32,
}

@group(1) @binding(0) var<uniform> tint: vec4<f32>;
@group(0) @binding(0) var<uniform> frame: Frame;
@group(0) @binding(1) var<storage, read> ignored: array<f32>;

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
    return frame.view_proj * vec4<f32>(pos, 1.0);
}

@fragment fn fs_main() -> @location(0) vec4<f32> {
    return tint;
}
`

func TestReflectWGSLUniforms(t *testing.T) {
	blocks := backend.ReflectWGSLUniforms(testWGSL)
	require.Len(t, blocks, 2)

	frame := blocks[0]
	assert.Equal(t, 0, frame.Group)
	assert.Equal(t, 0, frame.Binding)
	assert.Equal(t, "frame", frame.Var)
	assert.Equal(t, "Frame", frame.Type)
	assert.Equal(t, []backend.UniformField{
		{Name: "view_proj", Type: "mat4x4<f32>", Offset: 0, Size: 64},
		{Name: "lights", Type: "array<Light, 2>", Offset: 64, Size: 32},
		{Name: "normal_matrix", Type: "mat3x3<f32>", Offset: 96, Size: 48},
		{Name: "exposure", Type: "f32", Offset: 144, Size: 4},
	}, frame.Fields)
	assert.Equal(t, uint64(160), frame.Size)

	tint := blocks[1]
	assert.Equal(t, 1, tint.Group)
	assert.Equal(t, []backend.UniformField{{Name: "tint", Type: "vec4<f32>", Size: 16}}, tint.Fields)
	assert.Equal(t, uint64(16), tint.Size)
}

func TestReflectWGSLUniformsIgnoresUnknownTypes(t *testing.T) {
	blocks := backend.ReflectWGSLUniforms(`@group(0) @binding(0) var<uniform> data: Missing;`)
	assert.Empty(t, blocks)
}

func TestWGSLEntryPoint(t *testing.T) {
	assert.Equal(t, "vs_main", backend.WGSLEntryPoint(testWGSL, common.StageVertex))
	assert.Equal(t, "fs_main", backend.WGSLEntryPoint(testWGSL, common.StageFragment))
	assert.Empty(t, backend.WGSLEntryPoint("// @vertex fn commented() {}", common.StageVertex))
}

func floatsAt(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestPackUniform(t *testing.T) {
	tests := []struct {
		name     string
		value    common.UniformValue
		wgslType string
		want     []float32
	}{
		{
			name:     "float",
			value:    common.FloatValue(2.5),
			wgslType: "f32",
			want:     []float32{2.5},
		},
		{
			name:     "vec3",
			value:    common.Vec3Value(math32.Vec3(1, 2, 3)),
			wgslType: "vec3f",
			want:     []float32{1, 2, 3},
		},
		{
			name:     "quat as vec4",
			value:    common.QuatValue(math32.Quat{W: 1}),
			wgslType: "vec4<f32>",
			want:     []float32{0, 0, 0, 1},
		},
		{
			name:     "mat3 padded columns",
			value:    common.Mat3Value(math32.Matrix3{1, 2, 3, 4, 5, 6, 7, 8, 9}),
			wgslType: "mat3x3<f32>",
			want:     []float32{1, 2, 3, 0, 4, 5, 6, 0, 7, 8, 9, 0},
		},
		{
			name:     "mat4",
			value:    common.Mat4Value(math32.Identity4()),
			wgslType: "mat4x4f",
			want:     []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := backend.PackUniform(tt.value, tt.wgslType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, floatsAt(got))
		})
	}
}

func TestPackUniformInt(t *testing.T) {
	got, err := backend.PackUniform(common.IntValue(-2), "i32")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xff, 0xff, 0xff}, got)
}

func TestPackUniformKindMismatch(t *testing.T) {
	_, err := backend.PackUniform(common.IntValue(1), "f32")
	require.Error(t, err)

	_, err = backend.PackUniform(common.FloatValue(1), "mat4x4<f32>")
	require.Error(t, err)

	_, err = backend.PackUniform(common.FloatValue(1), "bool")
	require.Error(t, err)
}
