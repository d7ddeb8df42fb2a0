package wireproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wp "github.com/tripwire/wireproto"
)

// fixedPresenceProto builds a one-message protocol matching §8 scenario
// (d): a presence_bits(1) field governing two Optional fields, "a" (u8)
// and "b" (u16).
func fixedPresenceProto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "Packet",
			Fields: []wp.Field{
				{Name: "presence", Type: wp.PresenceBitsSpec{Bytes: 1}},
				{Name: "a", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}},
				{Name: "b", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U16}}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestDecodeFixedPresenceBothPresent(t *testing.T) {
	r := fixedPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.LittleEndian))

	data := []byte{0x03, 0x0A, 0x34, 0x12}
	consumed, values, err := c.DecodeMessage("Packet", data)
	require.NoError(t, err)
	assert.Equal(t, 4, consumed)

	a, ok := values["a"].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(10), a)

	b, ok := values["b"].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(0x1234), b)
}

func TestDecodeFixedPresenceOneAbsent(t *testing.T) {
	r := fixedPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.LittleEndian))

	data := []byte{0x01, 0x0A}
	consumed, values, err := c.DecodeMessage("Packet", data)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)

	a, ok := values["a"].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(10), a)
	assert.True(t, values["b"].IsAbsent())
}

func TestEncodeFixedPresenceRoundTrips(t *testing.T) {
	r := fixedPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.LittleEndian))

	values := map[string]wp.Value{
		"a": wp.Uint(10, 8),
		"b": wp.Uint(0x1234, 16),
	}
	out, err := c.EncodeMessage("Packet", values)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x0A, 0x34, 0x12}, out)

	consumed, decoded, err := c.DecodeMessage("Packet", out)
	require.NoError(t, err)
	assert.Equal(t, len(out), consumed)
	a, _ := decoded["a"].AsInt64()
	b, _ := decoded["b"].AsInt64()
	assert.Equal(t, int64(10), a)
	assert.Equal(t, int64(0x1234), b)
}

func TestEncodeAbsentOptionalOmitsBit(t *testing.T) {
	r := fixedPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.LittleEndian))

	values := map[string]wp.Value{"a": wp.Uint(10, 8)}
	out, err := c.EncodeMessage("Packet", values)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x0A}, out)
}

// bitmapPresenceProto builds a one-message protocol exercising §8
// scenario (b): an FX-terminated bitmap spanning two 7-bit blocks and 8
// Optional u8 fields.
func bitmapPresenceProto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	fields := []wp.Field{
		{Name: "fspec", Type: wp.BitmapPresenceSpec{TotalBits: 8, PerBlock: 7}},
	}
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, n := range names {
		fields = append(fields, wp.Field{Name: n, Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}})
	}
	proto := &wp.Protocol{Messages: []wp.Message{{Name: "Extended", Fields: fields}}}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestDecodeBitmapPresenceTwoBlocks(t *testing.T) {
	r := bitmapPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.BigEndian))

	data := []byte{0xFF, 0x80, 1, 2, 3, 4, 5, 6, 7, 8}
	consumed, values, err := c.DecodeMessage("Extended", data)
	require.NoError(t, err)
	assert.Equal(t, 10, consumed)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, n := range names {
		x, ok := values[n].AsInt64()
		require.True(t, ok, "field %s should be present", n)
		assert.Equal(t, int64(i+1), x)
	}
}

func TestEncodeBitmapPresenceRoundTrips(t *testing.T) {
	r := bitmapPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.BigEndian))

	values := map[string]wp.Value{}
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, n := range names {
		values[n] = wp.Uint(uint64(i+1), 8)
	}
	out, err := c.EncodeMessage("Extended", values)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x80, 1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestFXTerminationViolation(t *testing.T) {
	r := bitmapPresenceProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.BigEndian))

	// Block cap for 8 bits at 7/block is 2; if the second (last) byte still
	// has FX=1 set, that's a structural violation.
	data := []byte{0xFF, 0x81, 1, 2, 3, 4, 5, 6, 7, 8}
	_, _, err := c.DecodeMessage("Extended", data)
	assert.Error(t, err)
}

// nestedStructProto exercises StructRef recursion, depth tracking, and a
// LengthOf-prefixed byte sequence alongside it.
func nestedStructProto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	proto := &wp.Protocol{
		Structs: []wp.Struct{{
			Name: "Point",
			Fields: []wp.Field{
				{Name: "x", Type: wp.BaseSpec{Type: wp.I16}},
				{Name: "y", Type: wp.BaseSpec{Type: wp.I16}},
			},
		}},
		Messages: []wp.Message{{
			Name: "Shape",
			Fields: []wp.Field{
				{Name: "origin", Type: wp.StructRefSpec{Name: "Point"}},
				{Name: "count", Type: wp.LengthOfSpec{Field: "tag", Width: 8}},
				{Name: "tag", Type: wp.OctetsFxSpec{}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestDecodeEncodeNestedStructAndOctetsFx(t *testing.T) {
	r := nestedStructProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.BigEndian))

	// origin = (-1, 2); tag = two octets, 0x81 (continuation) then 0x02
	// (terminator, high bit clear) -> length 2 bytes.
	data := []byte{0xFF, 0xFF, 0x00, 0x02, 0x02, 0x81, 0x02}
	consumed, values, err := c.DecodeMessage("Shape", data)
	require.NoError(t, err)
	assert.Equal(t, len(data), consumed)

	origin, ok := values["origin"].AsMap()
	require.True(t, ok)
	x, _ := origin["x"].AsInt64()
	y, _ := origin["y"].AsInt64()
	assert.Equal(t, int64(-1), x)
	assert.Equal(t, int64(2), y)

	tag, ok := values["tag"].AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{0x81, 0x02}, tag)

	// Encode without an explicit count; it should be measured from tag.
	out, err := c.EncodeMessage("Shape", map[string]wp.Value{
		"origin": wp.Map(map[string]wp.Value{"x": wp.Int(-1, 16), "y": wp.Int(2, 16)}),
		"tag":    wp.BytesCopy([]byte{0x81, 0x02}),
	})
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEncodeExplicitLengthMismatchFails(t *testing.T) {
	r := nestedStructProto(t)
	c := wp.NewCodec(r, wp.WithEndianness(wp.BigEndian))

	_, err := c.EncodeMessage("Shape", map[string]wp.Value{
		"origin": wp.Map(map[string]wp.Value{"x": wp.Int(0, 16), "y": wp.Int(0, 16)}),
		"tag":    wp.BytesCopy([]byte{0x00}),
		"count":  wp.Uint(99, 8),
	})
	assert.ErrorIs(t, err, wp.ErrLengthMismatch)
}

func TestConstraintViolationFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "Bounded",
			Fields: []wp.Field{
				{Name: "v", Type: wp.BaseSpec{Type: wp.U8},
					Constraint: &wp.Constraint{Intervals: []wp.Interval{{Min: 0, Max: 10}}}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	c := wp.NewCodec(r)

	_, _, err = c.DecodeMessage("Bounded", []byte{20})
	assert.ErrorIs(t, err, wp.ErrValidation)
}

// fallbackOptionalProto builds a message with a standalone Optional field
// governed by no preceding PresenceBits/BitmapPresence, exercising the
// 1-byte fallback presence flag (§4.2/§4.3 "no active presence source").
func fallbackOptionalProto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name:   "Lone",
			Fields: []wp.Field{{Name: "a", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}}},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestEncodeDecodeFallbackOptionalPresentRoundTrips(t *testing.T) {
	r := fallbackOptionalProto(t)
	c := wp.NewCodec(r)

	out, err := c.EncodeMessage("Lone", map[string]wp.Value{"a": wp.Uint(42, 8)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x2A}, out)

	consumed, values, err := c.DecodeMessage("Lone", out)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	a, ok := values["a"].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(42), a)
}

func TestEncodeDecodeFallbackOptionalAbsentRoundTrips(t *testing.T) {
	r := fallbackOptionalProto(t)
	c := wp.NewCodec(r)

	out, err := c.EncodeMessage("Lone", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, out)

	consumed, values, err := c.DecodeMessage("Lone", out)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.True(t, values["a"].IsAbsent())
}

// typeRefProto builds a message that references a type_def by name rather
// than inlining its TypeSpec (§3 "name -> type_def").
func typeRefProto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	proto := &wp.Protocol{
		TypeDefs: []wp.TypeDef{{Name: "Flag", Type: wp.BaseSpec{Type: wp.U8}}},
		Messages: []wp.Message{{
			Name: "Tagged",
			Fields: []wp.Field{
				{Name: "v", Type: wp.TypeRefSpec{Name: "Flag"},
					Constraint: &wp.Constraint{Intervals: []wp.Interval{{Min: 0, Max: 10}}}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestResolveTypeRefToUnknownTypeDefFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name:   "Tagged",
			Fields: []wp.Field{{Name: "v", Type: wp.TypeRefSpec{Name: "Missing"}}},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.ErrorIs(t, err, wp.ErrUnknownName)
}

func TestEncodeDecodeTypeRefRoundTrips(t *testing.T) {
	r := typeRefProto(t)
	c := wp.NewCodec(r)

	out, err := c.EncodeMessage("Tagged", map[string]wp.Value{"v": wp.Uint(7, 8)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, out)

	consumed, values, err := c.DecodeMessage("Tagged", out)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	v, ok := values["v"].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestTypeRefConstraintIsEnforced(t *testing.T) {
	r := typeRefProto(t)
	c := wp.NewCodec(r)

	_, _, err := c.DecodeMessage("Tagged", []byte{20})
	assert.ErrorIs(t, err, wp.ErrValidation)
}

func TestPaddingAlwaysEncodesZero(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "Padded",
			Fields: []wp.Field{
				{Name: "pad", Type: wp.PaddingSpec{Bytes: 2}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	c := wp.NewCodec(r)

	out, err := c.EncodeMessage("Padded", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, out)
}
