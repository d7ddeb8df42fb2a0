package wireproto

import (
	"encoding/binary"
	"fmt"

	"github.com/tripwire/wireproto/internal/presence"
	"github.com/tripwire/wireproto/internal/trace"
)

// Codec binds a [ResolvedProtocol] to the options (endianness, recursion
// depth) used for every decode/encode operation performed through it. A
// Codec is immutable and safe for concurrent use, since it never mutates
// the resolved protocol and every call's transient state (bit cursor,
// presence frame, context map) is local to that call (§5).
type Codec struct {
	proto *ResolvedProtocol
	opts  codecOptions
}

// NewCodec binds proto to opts and returns a reusable [Codec].
func NewCodec(proto *ResolvedProtocol, opts ...Option) *Codec {
	return &Codec{proto: proto, opts: applyOptions(opts)}
}

// Endianness returns the byte order this codec was built with.
func (c *Codec) Endianness() Endianness { return c.opts.endianness }

// scope is the per-call mutable state threaded through one message or
// struct body's decode/encode: a bit cursor is implicit in the reader or
// writer it wraps, a presence source governs Optional dispatch, and ctx
// records scalar field values seen so far in this scope for later
// Condition and ArrayLen.FieldRef lookups (§4.2).
type scope struct {
	presence presence.Source
	ctx      map[string]int64
	depth    int
	path     string
}

func newScope(path string, depth int) scope {
	return scope{presence: presence.NoSource(), ctx: make(map[string]int64, 4), depth: depth, path: path}
}

func (s scope) field(name string) string {
	if s.path == "" {
		return name
	}
	return s.path + "." + name
}

// conditionSatisfied reports whether f should be processed at all: absent
// If means always; a present If is checked against ctx, treating an
// unrecorded field as unequal (§4.2 "Conditional fields").
func conditionSatisfied(f *Field, s *scope) bool {
	if f.If == nil {
		return true
	}
	v, ok := s.ctx[f.If.Field]
	return ok && v == f.If.Equals
}

// readUintBytes reads an n-byte unsigned integer at the codec's endianness from
// a byte-aligned position. The caller is responsible for alignment.
func readUintBytes(b []byte, e Endianness) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		if e == LittleEndian {
			return uint64(binary.LittleEndian.Uint16(b))
		}
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		if e == LittleEndian {
			return uint64(binary.LittleEndian.Uint32(b))
		}
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		if e == LittleEndian {
			return binary.LittleEndian.Uint64(b)
		}
		return binary.BigEndian.Uint64(b)
	default:
		trace.Assert(false, "readUintBytes: unsupported width %d", len(b))
		return 0
	}
}

func writeUintBytes(b []byte, v uint64, e Endianness) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		if e == LittleEndian {
			binary.LittleEndian.PutUint16(b, uint16(v))
		} else {
			binary.BigEndian.PutUint16(b, uint16(v))
		}
	case 4:
		if e == LittleEndian {
			binary.LittleEndian.PutUint32(b, uint32(v))
		} else {
			binary.BigEndian.PutUint32(b, uint32(v))
		}
	case 8:
		if e == LittleEndian {
			binary.LittleEndian.PutUint64(b, v)
		} else {
			binary.BigEndian.PutUint64(b, v)
		}
	default:
		trace.Assert(false, "writeUintBytes: unsupported width %d", len(b))
	}
}

// widthBytes returns bitWidth's ceil-to-byte width, used for LengthOf/CountOf's
// pluggable bit width (§9 open question; default [LengthWidthDefault]).
func widthBytes(bitWidth int) int {
	if bitWidth <= 0 {
		bitWidth = LengthWidthDefault
	}
	return (bitWidth + 7) / 8
}

// signExtend sign-extends the low `bits` bits of v.
func signExtend(v uint64, bits int) int64 {
	if bits >= 64 {
		return int64(v)
	}
	shift := 64 - uint(bits)
	return int64(v<<shift) >> shift
}

// checkConstraint validates x against f's constraint, if any.
func checkConstraint(f *Field, x int64, path string, offset int) error {
	if f.Constraint == nil {
		return nil
	}
	if !f.Constraint.Check(x) {
		return newValidationErr(path, offset, fmt.Sprintf("%s out of range", f.Name), x)
	}
	return nil
}

// resolveArrayLen resolves an [ArrayLen] to a concrete element count using
// ctx for FieldRef lookups.
func resolveArrayLen(l ArrayLen, s *scope, path string, offset int) (int, error) {
	if l.FieldRef == "" {
		return l.Const, nil
	}
	v, ok := s.ctx[l.FieldRef]
	if !ok {
		return 0, newErr(ErrUnknownName, path, offset, fmt.Sprintf("array length references unrecorded field %q", l.FieldRef))
	}
	return int(v), nil
}

// resolveTypeDef follows a named type-def through to its underlying spec,
// so StructRef bodies and fields may reference either an inline TypeSpec or
// an indirection through [TypeDef].
func (c *Codec) resolveTypeDef(name string) (TypeSpec, error) {
	td, ok := c.proto.TypeDef(name)
	if !ok {
		return nil, fmt.Errorf("%w: type definition %q", ErrUnknownName, name)
	}
	return td.Type, nil
}
