package wireproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wp "github.com/tripwire/wireproto"
)

func TestResolveUnknownStructRefFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name:   "M",
			Fields: []wp.Field{{Name: "f", Type: wp.StructRefSpec{Name: "Missing"}}},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.ErrorIs(t, err, wp.ErrUnknownName)
}

func TestResolveDuplicateMessageNameFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{
			{Name: "M", Fields: []wp.Field{{Name: "a", Type: wp.BaseSpec{Type: wp.U8}}}},
			{Name: "M", Fields: []wp.Field{{Name: "b", Type: wp.BaseSpec{Type: wp.U8}}}},
		},
	}
	_, err := wp.Resolve(proto)
	assert.Error(t, err)
}

func TestResolveDuplicateFieldNameFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "a", Type: wp.BaseSpec{Type: wp.U8}},
				{Name: "a", Type: wp.BaseSpec{Type: wp.U8}},
			},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.Error(t, err)
}

func TestResolvePresenceFieldWithNoOptionalsFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "presence", Type: wp.PresenceBitsSpec{Bytes: 1}},
				{Name: "a", Type: wp.BaseSpec{Type: wp.U8}},
			},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.ErrorIs(t, err, wp.ErrValidation)
}

func TestResolveDerivesMessagePresenceMapping(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "presence", Type: wp.PresenceBitsSpec{Bytes: 1}},
				{Name: "a", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}},
				{Name: "b", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	mapping, ok := r.MessagePresence("M")
	require.True(t, ok)
	assert.Len(t, mapping.Optionals, 2)
}

func TestResolveStaticAlignmentViolationFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "a", Type: wp.BitfieldSpec{Bits: 3}},
			},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.ErrorIs(t, err, wp.ErrValidation)
}

func TestResolveStaticAlignmentOkWhenByteAligned(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "a", Type: wp.BitfieldSpec{Bits: 3}},
				{Name: "b", Type: wp.BitfieldSpec{Bits: 5}},
			},
		}},
	}
	_, err := wp.Resolve(proto)
	assert.NoError(t, err)
}

func TestResolveBitmapPresenceFXRuleViaDecode(t *testing.T) {
	// per_block=7 over 8 bits needs exactly two FSPEC bytes at decode time;
	// Resolve itself accepts the shape (runtime enforces MaxVariableBlocks).
	proto := &wp.Protocol{
		Messages: []wp.Message{{
			Name: "M",
			Fields: []wp.Field{
				{Name: "fspec", Type: wp.BitmapPresenceSpec{TotalBits: 8, PerBlock: 7}},
				{Name: "a", Type: wp.OptionalSpec{Elem: wp.BaseSpec{Type: wp.U8}}},
			},
		}},
	}
	r, err := wp.Resolve(proto)
	require.NoError(t, err)
	mapping, ok := r.MessagePresence("M")
	require.True(t, ok)
	assert.Len(t, mapping.Optionals, 1)
}

func TestResolvePayloadRouteToUnknownMessageFails(t *testing.T) {
	proto := &wp.Protocol{
		Messages: []wp.Message{{Name: "M", Fields: []wp.Field{{Name: "a", Type: wp.BaseSpec{Type: wp.U8}}}}},
		Payload: &wp.Payload{
			Routes: map[int64]wp.PayloadRoute{1: {Message: "Ghost"}},
		},
	}
	_, err := wp.Resolve(proto)
	assert.Error(t, err)
}
