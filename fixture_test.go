package wireproto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wp "github.com/tripwire/wireproto"
	"github.com/tripwire/wireproto/internal/fixture"
)

// TestPresenceScenariosFromFixture replays §8's worked presence scenarios
// from a YAML golden-vector file rather than inline byte slices, so the
// same cases can later grow without touching test source.
func TestPresenceScenariosFromFixture(t *testing.T) {
	suite, err := fixture.Load("testdata/presence_scenarios.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, suite.Cases)

	fixedR := fixedPresenceProto(t)
	fixedC := wp.NewCodec(fixedR, wp.WithEndianness(wp.LittleEndian))
	bitmapR := bitmapPresenceProto(t)
	bitmapC := wp.NewCodec(bitmapR, wp.WithEndianness(wp.BigEndian))

	for _, tc := range suite.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			data, err := tc.Bytes()
			require.NoError(t, err)

			var c *wp.Codec
			switch tc.Message {
			case "Packet":
				c = fixedC
			case "Extended":
				c = bitmapC
			default:
				t.Fatalf("unknown fixture message %q", tc.Message)
			}

			consumed, _, err := c.DecodeMessage(tc.Message, data)
			if tc.WantErr != "" {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tc.WantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.WantConsumed, consumed)
		})
	}
}
