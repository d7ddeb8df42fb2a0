package wireproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wp "github.com/tripwire/wireproto"
)

func simpleU8Proto(t *testing.T) *wp.ResolvedProtocol {
	t.Helper()
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name:   "Ping",
			Fields: []wp.Field{{Name: "v", Type: wp.BaseSpec{Type: wp.U8}}},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	return r
}

func TestDecodeFrameMultipleRecords(t *testing.T) {
	r := simpleU8Proto(t)
	c := wp.NewCodec(r)

	data := []byte{1, 2, 3}
	decoded, rejected, err := c.DecodeFrame(data, "Ping", 0)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, decoded, 3)
	for i, rec := range decoded {
		v, _ := rec.Values["v"].AsInt64()
		assert.Equal(t, int64(i+1), v)
		assert.Equal(t, i, rec.Range.Start)
		assert.Equal(t, 1, rec.Range.Len)
	}
}

func TestDecodeFrameSkipsTransportHeader(t *testing.T) {
	r := simpleU8Proto(t)
	c := wp.NewCodec(r)

	data := []byte{0xDE, 0xAD, 1, 2}
	decoded, rejected, err := c.DecodeFrame(data, "Ping", 2)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, decoded, 2)
	assert.Equal(t, 2, decoded[0].Range.Start)
	assert.Equal(t, 3, decoded[1].Range.Start)
}

func TestDecodeFrameRejectsValidationFailureAndContinues(t *testing.T) {
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

	// First record violates the constraint (20 > 10); second is fine (5).
	data := []byte{20, 5}
	decoded, rejected, err := c.DecodeFrame(data, "Bounded", 0)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Len(t, decoded, 1)
	assert.Equal(t, 0, rejected[0].Range.Start)
	assert.Equal(t, 1, decoded[0].Range.Start)
	v, _ := decoded[0].Values["v"].AsInt64()
	assert.Equal(t, int64(5), v)
}

func TestDecodeFrameAbortsOnStructuralShortBuffer(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name:   "Wide",
			Fields: []wp.Field{{Name: "v", Type: wp.BaseSpec{Type: wp.U16}}},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	c := wp.NewCodec(r)

	// One full record (2 bytes) followed by a single trailing byte: not
	// enough for a second record, so decoding it is a structural failure
	// whose partial consumed count must not be treated as a record boundary.
	data := []byte{0x01, 0x00, 0xFF}
	decoded, rejected, err := c.DecodeFrame(data, "Wide", 0)
	assert.Error(t, err)
	assert.Empty(t, rejected)
	require.Len(t, decoded, 1)
}

func TestEncodeFrameRoundTrips(t *testing.T) {
	r := simpleU8Proto(t)
	c := wp.NewCodec(r)

	records := []map[string]wp.Value{
		{"v": wp.Uint(1, 8)},
		{"v": wp.Uint(2, 8)},
	}
	out, err := c.EncodeFrame("Ping", records, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, out)

	decoded, rejected, err := c.DecodeFrame(out, "Ping", 0)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Len(t, decoded, 2)
}

func TestEncodeFramePadsShortHeader(t *testing.T) {
	r := simpleU8Proto(t)
	c := wp.NewCodec(r)

	out, err := c.EncodeFrame("Ping", nil, []byte{0xAB}, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0x00, 0x00, 0x00}, out)
}

func TestRemoveMessageInPlaceShiftsTail(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	newLen := wp.RemoveMessageInPlace(buf, 1, 2)
	assert.Equal(t, 3, newLen)
	assert.Equal(t, []byte{1, 4, 5}, buf[:newLen])
}

func TestRewriteLengthFieldBigEndian(t *testing.T) {
	buf := make([]byte, 4)
	wp.RewriteLengthField(buf, 0, 2, 0x1234, wp.BigEndian)
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0x00}, buf)
}

func TestRewriteLengthFieldLittleEndian(t *testing.T) {
	buf := make([]byte, 4)
	wp.RewriteLengthField(buf, 0, 2, 0x1234, wp.LittleEndian)
	assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x00}, buf)
}
