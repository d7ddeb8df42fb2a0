package wireproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	wp "github.com/tripwire/wireproto"
)

func TestValueIntRoundTrip(t *testing.T) {
	v := wp.Int(-5, 8)
	x, ok := v.AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(-5), x)
}

func TestValueUintMasksWidth(t *testing.T) {
	v := wp.Uint(0x1FF, 8)
	x, _ := v.AsUint64()
	assert.Equal(t, uint64(0xFF), x)
}

func TestValueAbsentIsEmptyList(t *testing.T) {
	v := wp.Absent()
	assert.True(t, v.IsAbsent())
	elems, ok := v.AsList()
	assert.True(t, ok)
	assert.Empty(t, elems)
}

func TestValueNonEmptyListIsNotAbsent(t *testing.T) {
	v := wp.List([]wp.Value{wp.Uint(1, 8)})
	assert.False(t, v.IsAbsent())
}

func TestValueBytesCopyDoesNotAliasSource(t *testing.T) {
	src := []byte{1, 2, 3}
	v := wp.BytesCopy(src)
	src[0] = 0xFF
	b, ok := v.AsBytes()
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, b)
}

func TestValueFloatRoundTrip(t *testing.T) {
	v := wp.Float32(3.5)
	f, ok := v.AsFloat32()
	assert.True(t, ok)
	assert.Equal(t, float32(3.5), f)
}

func TestValueWrongAccessorFails(t *testing.T) {
	v := wp.Bool(true)
	_, ok := v.AsBytes()
	assert.False(t, ok)
}

func TestValueDumpMap(t *testing.T) {
	v := wp.Map(map[string]wp.Value{"x": wp.Uint(1, 8)})
	assert.Contains(t, wp.Dump(v), "x:")
}
