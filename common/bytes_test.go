package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesViews(t *testing.T) {
	vals := []float32{1, 2, 3}
	b := ToBytes(vals)
	assert.Len(t, b, 12)
	assert.Equal(t, vals, FromBytes[float32](b))

	// The view aliases the source.
	vals[1] = 9
	assert.Equal(t, float32(9), FromBytes[float32](b)[1])

	assert.Nil(t, ToBytes[uint16](nil))
	assert.Nil(t, FromBytes[uint32](b[:3]))
	assert.Len(t, FromBytes[uint32](b[:7]), 1)
}

func TestSizeOf(t *testing.T) {
	type vertex struct {
		Pos   [3]float32
		Color [4]uint8
	}
	assert.Equal(t, 2, SizeOf[uint16]())
	assert.Equal(t, 16, SizeOf[vertex]())
}
