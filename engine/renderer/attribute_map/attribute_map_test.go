package attribute_map_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/attribute_map"
)

func TestPutAssignsRunningOffsets(t *testing.T) {
	m := attribute_map.NewAttributeMap()

	a, err := m.Put("a", common.ElementFloat, 4, false)
	require.NoError(t, err)
	b, err := m.Put("b", common.ElementFloat, 3, false)
	require.NoError(t, err)

	assert.Equal(t, 28, m.Stride())
	assert.Equal(t, 7, m.Count())
	assert.Equal(t, 0, a.ByteOffset)
	assert.Equal(t, 16, b.ByteOffset)

	first, ok := m.At(0)
	require.True(t, ok)
	assert.Equal(t, a, first)
	second, ok := m.At(1)
	require.True(t, ok)
	assert.Equal(t, 16, second.ByteOffset)

	_, ok = m.At(2)
	assert.False(t, ok)
	_, ok = m.At(-1)
	assert.False(t, ok)
}

func TestMixedElementTypesHaveNoPadding(t *testing.T) {
	m := attribute_map.NewAttributeMap()
	_, err := m.Put("pos", common.ElementFloat, 3, false)
	require.NoError(t, err)
	_, err = m.Put("id", common.ElementUnsignedShort, 1, false)
	require.NoError(t, err)
	uv, err := m.Put("uv", common.ElementFloat, 2, false)
	require.NoError(t, err)

	assert.Equal(t, 14, uv.ByteOffset)
	assert.Equal(t, 22, m.Stride())
	assert.Equal(t, 8, uv.Size())
}

func TestShorthandsUseReservedNames(t *testing.T) {
	m := attribute_map.NewAttributeMap()
	_, err := m.PutPosition(3)
	require.NoError(t, err)
	_, err = m.PutNormal(3)
	require.NoError(t, err)
	_, err = m.PutTexcoord(2)
	require.NoError(t, err)
	_, err = m.PutColor(4)
	require.NoError(t, err)

	assert.Equal(t, []string{"position", "normal", "texcoord", "color"}, m.Names())
	assert.Equal(t, 48, m.Stride())
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, 12, m.Count())
	color, ok := m.Get(attribute_map.NameColor)
	require.True(t, ok)
	assert.Equal(t, common.ElementFloat, color.ElementType)
	assert.Equal(t, 32, color.ByteOffset)
}

func TestDuplicateNameReplacesInPlace(t *testing.T) {
	m := attribute_map.NewAttributeMap()
	_, err := m.Put("a", common.ElementFloat, 2, false)
	require.NoError(t, err)
	_, err = m.Put("b", common.ElementFloat, 1, false)
	require.NoError(t, err)

	replaced, err := m.Put("a", common.ElementFloat, 4, true)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 12, replaced.ByteOffset)
	assert.Equal(t, 28, m.Stride())
	// The replaced record keeps its components in the total, matching the stride gap.
	assert.Equal(t, 7, m.Count())

	first, _ := m.At(0)
	assert.Equal(t, replaced, first)
	second, _ := m.At(1)
	assert.Equal(t, 8, second.ByteOffset)
}

func TestPutRejectsInvalidAttributes(t *testing.T) {
	m := attribute_map.NewAttributeMap()

	_, err := m.Put("", common.ElementFloat, 3, false)
	require.ErrorIs(t, err, common.ErrInvalidLayout)
	_, err = m.Put("a", common.ElementFloat, 0, false)
	require.ErrorIs(t, err, common.ErrInvalidLayout)
	_, err = m.Put("a", common.ElementType(99), 1, false)
	require.ErrorIs(t, err, common.ErrInvalidLayout)

	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.Stride())
}

func TestBuilderAttributes(t *testing.T) {
	m := attribute_map.NewAttributeMap(
		attribute_map.WithAttribute("position", common.ElementFloat, 3, false),
		attribute_map.WithAttribute("bad", common.ElementFloat, 0, false),
		attribute_map.WithAttribute("color", common.ElementUnsignedShort, 4, true),
	)

	assert.Equal(t, []string{"position", "color"}, m.Names())
	assert.Equal(t, 20, m.Stride())
	attrs := m.Attributes()
	require.Len(t, attrs, 2)
	assert.True(t, attrs[1].Normalized)
}
