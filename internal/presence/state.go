package presence

import "fmt"

// kind distinguishes the three presence-source shapes described in §4.3.
type kind uint8

const (
	kindNone kind = iota
	kindFixed
	kindVariable
)

// Source is the runtime presence-bit state machine shared by the codec and
// the walk engine: whichever of them installs a PresenceBits/BitmapPresence
// field feeds the result to every Optional field that follows in the same
// scope, in declaration order.
type Source struct {
	kind     kind
	value    uint64 // kindFixed: the raw bitmap integer, LSB-first indexed.
	bytes    []byte // kindVariable: the FSPEC-style byte run.
	perBlock int    // kindVariable: 0 = plain MSB-first bitmap, >0 = FX blocks.
	index    int    // next logical (data-only) bit to consume.
}

// NoSource is the zero state: every Optional falls back to a 1-byte boolean
// flag.
func NoSource() Source { return Source{kind: kindNone} }

// FixedSource wraps a PresenceBits(n) value. Bit i is (value>>i)&1, per §4.2.
func FixedSource(value uint64) Source { return Source{kind: kindFixed, value: value} }

// VariableSource wraps a previously-read BitmapPresence byte run.
func VariableSource(bytes []byte, perBlock int) Source {
	return Source{kind: kindVariable, bytes: bytes, perBlock: perBlock}
}

// HasSource reports whether any presence field is active in scope.
func (s *Source) HasSource() bool { return s.kind != kindNone }

// Next consumes the next logical presence bit and reports whether it is
// set. Calling it with no active source is a programmer error: callers must
// check [Source.HasSource] first and fall back to a boolean flag.
func (s *Source) Next() bool {
	switch s.kind {
	case kindFixed:
		present := (s.value>>uint(s.index))&1 == 1
		s.index++
		return present
	case kindVariable:
		present := s.variableBit(s.index)
		s.index++
		return present
	default:
		panic("presence: Next called with no active source")
	}
}

// variableBit reports logical bit logicalIndex; a bit past the last byte
// read (the FSPEC ended early with FX=0) is clear.
func (s *Source) variableBit(logicalIndex int) bool {
	if s.perBlock <= 0 {
		byteIdx := logicalIndex / 8
		bitIdx := logicalIndex % 8
		if byteIdx >= len(s.bytes) {
			return false
		}
		return s.bytes[byteIdx]&(0x80>>uint(bitIdx)) != 0
	}
	byteIdx := logicalIndex / s.perBlock
	posInBlock := logicalIndex % s.perBlock
	if byteIdx >= len(s.bytes) {
		return false
	}
	return s.bytes[byteIdx]&(0x80>>uint(posInBlock)) != 0
}

// MaxVariableBlocks returns ceil(totalBits/perBlock) for perBlock > 0, the
// block count at which FSPEC reading must stop regardless of FX.
func MaxVariableBlocks(totalBits, perBlock int) int {
	if perBlock <= 0 {
		return (totalBits + 7) / 8
	}
	return (totalBits + perBlock - 1) / perBlock
}

// ErrFXTermination is returned by variable-bitmap readers when the maximum
// block count is reached but the last byte read still has FX=1.
var ErrFXTermination = fmt.Errorf("presence: last FSPEC byte must have FX=0")

// BuildFixed packs present[i] into bit i of a fixed presence bitmap value.
func BuildFixed(present []bool) uint64 {
	var v uint64
	for i, p := range present {
		if p {
			v |= 1 << uint(i)
		}
	}
	return v
}

// BuildVariable packs present[i] into a BitmapPresence byte run using the
// same MSB-down-per-block convention [Source.Next] decodes.
func BuildVariable(present []bool, perBlock int) []byte {
	if perBlock <= 0 {
		n := (len(present) + 7) / 8
		out := make([]byte, n)
		for i, p := range present {
			if p {
				out[i/8] |= 0x80 >> uint(i%8)
			}
		}
		return out
	}

	maxBlocks := MaxVariableBlocks(len(present), perBlock)
	out := make([]byte, 0, maxBlocks)
	for block := 0; block < maxBlocks; block++ {
		var b byte
		for j := 0; j < perBlock; j++ {
			i := block*perBlock + j
			if i < len(present) && present[i] {
				b |= 0x80 >> uint(j)
			}
		}
		if block < maxBlocks-1 {
			b |= 0x01 // FX: another block follows.
		}
		out = append(out, b)
	}
	return out
}
