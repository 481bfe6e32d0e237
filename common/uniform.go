package common

import (
	"fmt"
	"image/color"

	"cogentcore.org/core/math32"
)

// UniformKind identifies the shape of a uniform value.
type UniformKind int

const (
	UniformInt UniformKind = iota
	UniformFloat
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat2
	UniformMat3
	UniformMat4
	UniformColor
	UniformQuat
)

func (k UniformKind) String() string {
	switch k {
	case UniformInt:
		return "int"
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	case UniformMat2:
		return "mat2"
	case UniformMat3:
		return "mat3"
	case UniformMat4:
		return "mat4"
	case UniformColor:
		return "color"
	case UniformQuat:
		return "quat"
	default:
		return fmt.Sprintf("UniformKind(%d)", int(k))
	}
}

// Components returns the number of scalar components carried by a value of this kind.
func (k UniformKind) Components() int {
	switch k {
	case UniformInt, UniformFloat:
		return 1
	case UniformVec2:
		return 2
	case UniformVec3:
		return 3
	case UniformVec4, UniformColor, UniformQuat, UniformMat2:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	default:
		return 0
	}
}

// UniformValue is an opaque, comparable uniform payload. Two values are equal when their kind and
// every component are equal, so the == operator is the value-equality used by uniform caches.
// Matrices are stored column-major.
type UniformValue struct {
	kind    UniformKind
	integer int32
	floats  [16]float32
}

// Kind returns the kind of the value.
func (v UniformValue) Kind() UniformKind { return v.kind }

// Int returns the integer payload of a UniformInt value.
func (v UniformValue) Int() int32 { return v.integer }

// Floats returns a copy of the float components of the value, Components() long.
func (v UniformValue) Floats() []float32 {
	n := v.kind.Components()
	if v.kind == UniformInt {
		n = 0
	}
	out := make([]float32, n)
	copy(out, v.floats[:n])
	return out
}

func (v UniformValue) String() string {
	if v.kind == UniformInt {
		return fmt.Sprintf("%s(%d)", v.kind, v.integer)
	}
	return fmt.Sprintf("%s%v", v.kind, v.Floats())
}

// IntValue creates a scalar integer uniform value.
func IntValue(i int32) UniformValue {
	return UniformValue{kind: UniformInt, integer: i}
}

// FloatValue creates a scalar float uniform value.
func FloatValue(f float32) UniformValue {
	v := UniformValue{kind: UniformFloat}
	v.floats[0] = f
	return v
}

// Vec2Value creates a two-component vector uniform value.
func Vec2Value(vec math32.Vector2) UniformValue {
	v := UniformValue{kind: UniformVec2}
	v.floats[0], v.floats[1] = vec.X, vec.Y
	return v
}

// Vec3Value creates a three-component vector uniform value.
func Vec3Value(vec math32.Vector3) UniformValue {
	v := UniformValue{kind: UniformVec3}
	v.floats[0], v.floats[1], v.floats[2] = vec.X, vec.Y, vec.Z
	return v
}

// Vec4Value creates a four-component vector uniform value.
func Vec4Value(vec math32.Vector4) UniformValue {
	v := UniformValue{kind: UniformVec4}
	v.floats[0], v.floats[1], v.floats[2], v.floats[3] = vec.X, vec.Y, vec.Z, vec.W
	return v
}

// Mat2Value creates a 2x2 matrix uniform value from column-major components.
func Mat2Value(m [4]float32) UniformValue {
	v := UniformValue{kind: UniformMat2}
	copy(v.floats[:], m[:])
	return v
}

// Mat3Value creates a 3x3 matrix uniform value.
func Mat3Value(m math32.Matrix3) UniformValue {
	v := UniformValue{kind: UniformMat3}
	copy(v.floats[:], m[:])
	return v
}

// Mat4Value creates a 4x4 matrix uniform value.
func Mat4Value(m math32.Matrix4) UniformValue {
	v := UniformValue{kind: UniformMat4}
	copy(v.floats[:], m[:])
	return v
}

// ColorValue creates a color uniform value with components normalized to [0, 1].
// The color is converted through its non-premultiplied RGBA form.
func ColorValue(c color.Color) UniformValue {
	v := UniformValue{kind: UniformColor}
	if c == nil {
		return v
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	v.floats[0] = float32(n.R) / 255
	v.floats[1] = float32(n.G) / 255
	v.floats[2] = float32(n.B) / 255
	v.floats[3] = float32(n.A) / 255
	return v
}

// QuatValue creates a quaternion uniform value stored as (x, y, z, w).
func QuatValue(q math32.Quat) UniformValue {
	v := UniformValue{kind: UniformQuat}
	v.floats[0], v.floats[1], v.floats[2], v.floats[3] = q.X, q.Y, q.Z, q.W
	return v
}
