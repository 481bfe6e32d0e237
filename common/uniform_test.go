package common

import (
	"image/color"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
)

func TestUniformValueEquality(t *testing.T) {
	assert.Equal(t, FloatValue(1), FloatValue(1))
	assert.True(t, Vec3Value(math32.Vec3(1, 2, 3)) == Vec3Value(math32.Vec3(1, 2, 3)))
	assert.False(t, Vec3Value(math32.Vec3(1, 2, 3)) == Vec3Value(math32.Vec3(1, 2, 4)))

	// Same components, different kind.
	assert.False(t, Vec4Value(math32.Vec4(0, 0, 0, 1)) == QuatValue(math32.Quat{W: 1}))
	assert.False(t, IntValue(0) == FloatValue(0))
}

func TestUniformValueFloats(t *testing.T) {
	assert.Empty(t, IntValue(7).Floats())
	assert.Equal(t, int32(7), IntValue(7).Int())
	assert.Equal(t, []float32{1, 2}, Vec2Value(math32.Vec2(1, 2)).Floats())
	assert.Equal(t, []float32{1, 0, 0, 1}, Mat2Value([4]float32{1, 0, 0, 1}).Floats())

	m := Mat4Value(math32.Identity4()).Floats()
	assert.Len(t, m, 16)
	assert.Equal(t, float32(1), m[15])
}

func TestColorValueNormalizes(t *testing.T) {
	v := ColorValue(color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	assert.Equal(t, UniformColor, v.Kind())
	assert.Equal(t, []float32{1, 0, 0.2, 1}, v.Floats())

	// Premultiplied input is converted back to straight alpha.
	half := ColorValue(color.RGBA{R: 128, A: 128})
	assert.InDelta(t, 1.0, half.Floats()[0], 0.01)
	assert.InDelta(t, 0.5, half.Floats()[3], 0.01)

	assert.Equal(t, []float32{0, 0, 0, 0}, ColorValue(nil).Floats())
}

func TestUniformValueString(t *testing.T) {
	assert.Equal(t, "int(3)", IntValue(3).String())
	assert.Equal(t, "vec2[1 2]", Vec2Value(math32.Vec2(1, 2)).String())
	assert.Equal(t, 9, UniformMat3.Components())
	assert.Zero(t, UniformKind(-1).Components())
}
