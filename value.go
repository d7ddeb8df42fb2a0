package wireproto

import (
	"fmt"
	"math"
	"strings"

	"github.com/tripwire/wireproto/internal/zc"
)

// Kind is the tag of a [Value]'s active variant.
type Kind uint8

// The kinds a [Value] can hold. See the data model in §3 of the
// specification: a tagged union over scalars, an opaque byte string, an
// ordered list, a named map, and padding/reserved sentinels.
const (
	KindInvalid Kind = iota
	KindUint
	KindInt
	KindBool
	KindFloat32
	KindFloat64
	KindBytes
	KindList
	KindMap
	KindPadding
	KindReserved
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindPadding:
		return "padding"
	case KindReserved:
		return "reserved"
	default:
		return "invalid"
	}
}

// Value is a decoded field value: a tagged union over unsigned and signed
// integers (8/16/32/64 bit, stored widened), a bool, 32- and 64-bit floats,
// an opaque byte string, an ordered list of Values, a named (field-order
// independent) map from string to Value, and padding/reserved sentinels.
//
// Value is cheaply cloneable: a byte-string Value holds a [zc.Range] into
// its source buffer rather than a copy, and copying a Value struct never
// touches list/map contents by deep-copying them. Lists and maps share
// backing storage on copy, matching decode's "consumed by encode" lifetime
// (a decoded tree is read once and then discarded).
type Value struct {
	kind  Kind
	bits  uint64 // Uint/Int/Bool/Float32/Float64, reinterpreted.
	width uint8  // bit width for Int, used to sign-extend on read.
	rng   zc.Range
	src   []byte // Backing buffer for rng; nil for values not built from bytes.
	list  []Value
	m     map[string]Value
}

// Invalid reports whether v is the zero Value (no variant set).
func (v Value) Invalid() bool { return v.kind == KindInvalid }

// Kind returns the active variant of v.
func (v Value) Kind() Kind { return v.kind }

// --- constructors ---

// Uint constructs an unsigned-integer Value. width is the bit width (1 to
// 64); x is truncated to it.
func Uint(x uint64, width int) Value {
	return Value{kind: KindUint, bits: maskWidth(x, width)}
}

// Int constructs a signed-integer Value. width is the bit width (1 to 64)
// that AsInt64 sign-extends from; any other width is treated as 64.
func Int(x int64, width int) Value {
	if width <= 0 || width > 64 {
		width = 64
	}
	return Value{kind: KindInt, bits: maskWidth(uint64(x), width), width: uint8(width)}
}

func maskWidth(x uint64, width int) uint64 {
	if width >= 64 {
		return x
	}
	return x & (1<<uint(width) - 1)
}

// Bool constructs a boolean Value.
func Bool(b bool) Value {
	var x uint64
	if b {
		x = 1
	}
	return Value{kind: KindBool, bits: x}
}

// Float32 constructs a 32-bit floating point Value.
func Float32(f float32) Value {
	return Value{kind: KindFloat32, bits: uint64(math.Float32bits(f))}
}

// Float64 constructs a 64-bit floating point Value.
func Float64(f float64) Value {
	return Value{kind: KindFloat64, bits: math.Float64bits(f)}
}

// Bytes constructs an opaque byte-string Value referencing rng within src,
// without copying.
func Bytes(src []byte, rng zc.Range) Value {
	return Value{kind: KindBytes, rng: rng, src: src}
}

// BytesCopy constructs an opaque byte-string Value by copying b. Used when
// there is no stable source buffer to reference zero-copy (e.g. values
// built programmatically for encoding).
func BytesCopy(b []byte) Value {
	cp := append([]byte(nil), b...)
	return Value{kind: KindBytes, rng: zc.New(0, len(cp)), src: cp}
}

// List constructs an ordered-sequence Value. A zero-length list is the
// representation for an absent Optional field (see [Absent]).
func List(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindList, list: elems}
}

// Absent is the canonical representation of an absent Optional field: an
// empty ordered list. Present Optionals decode to their inner Value
// directly (never wrapped); absent ones decode to this marker.
func Absent() Value { return List(nil) }

// Map constructs a named-field Value from a field name to Value mapping.
// Field order is not significant for Map values (unlike message/struct
// field order, which is declaration order).
func Map(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindMap, m: fields}
}

// Padding is the sentinel decoded for Padding/PaddingBits fields.
func Padding() Value { return Value{kind: KindPadding} }

// Reserved is the sentinel decoded for Reserved fields.
func Reserved() Value { return Value{kind: KindReserved} }

// --- accessors ---

// AsUint64 returns v's value as an unsigned 64-bit integer. Conversions
// to/from integers are total for integer variants (Uint, Int, Bool) and
// fail (ok=false) for every other variant, per the data model.
func (v Value) AsUint64() (x uint64, ok bool) {
	switch v.kind {
	case KindUint, KindBool:
		return v.bits, true
	case KindInt:
		i, _ := v.AsInt64()
		return uint64(i), true
	default:
		return 0, false
	}
}

// AsInt64 returns v's value as a signed 64-bit integer, sign-extended from
// the width it was constructed with if v is a KindInt.
func (v Value) AsInt64() (x int64, ok bool) {
	switch v.kind {
	case KindInt:
		width := int(v.width)
		if width == 0 || width >= 64 {
			return int64(v.bits), true
		}
		shift := 64 - uint(width)
		return int64(v.bits<<shift) >> shift, true
	case KindUint:
		return int64(v.bits), true
	case KindBool:
		return int64(v.bits), true
	default:
		return 0, false
	}
}

// AsBool returns v's value as a bool. Any nonzero integer variant is true.
func (v Value) AsBool() (b bool, ok bool) {
	switch v.kind {
	case KindBool:
		return v.bits != 0, true
	case KindUint:
		return v.bits != 0, true
	case KindInt:
		i, _ := v.AsInt64()
		return i != 0, true
	default:
		return false, false
	}
}

// AsFloat32 returns v's value as a float32.
func (v Value) AsFloat32() (f float32, ok bool) {
	if v.kind != KindFloat32 {
		return 0, false
	}
	return math.Float32frombits(uint32(v.bits)), true
}

// AsFloat64 returns v's value as a float64.
func (v Value) AsFloat64() (f float64, ok bool) {
	if v.kind != KindFloat64 {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

// AsBytes returns v's byte-string contents. Valid only for KindBytes.
func (v Value) AsBytes() (b []byte, ok bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.rng.Bytes(v.src), true
}

// AsList returns v's elements. A KindList value with zero elements is the
// absent-optional marker (see [Absent]).
func (v Value) AsList() (elems []Value, ok bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// IsAbsent reports whether v is the absent-optional marker.
func (v Value) IsAbsent() bool {
	return v.kind == KindList && len(v.list) == 0
}

// AsMap returns v's fields. Valid only for KindMap.
func (v Value) AsMap() (fields map[string]Value, ok bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Dump renders v as a diffable, unit-free string, for golden-test output
// and debugging. It performs no physical-unit formatting (that stays a
// presentation-layer concern, out of scope for this package).
func Dump(v Value) string {
	var b strings.Builder
	dump(&b, v)
	return b.String()
}

// GoString implements [fmt.GoStringer].
func (v Value) GoString() string { return Dump(v) }

func dump(b *strings.Builder, v Value) {
	switch v.kind {
	case KindUint:
		fmt.Fprintf(b, "%d", v.bits)
	case KindInt:
		i, _ := v.AsInt64()
		fmt.Fprintf(b, "%d", i)
	case KindBool:
		fmt.Fprintf(b, "%v", v.bits != 0)
	case KindFloat32:
		f, _ := v.AsFloat32()
		fmt.Fprintf(b, "%g", f)
	case KindFloat64:
		f, _ := v.AsFloat64()
		fmt.Fprintf(b, "%g", f)
	case KindBytes:
		bs, _ := v.AsBytes()
		fmt.Fprintf(b, "%x", bs)
	case KindList:
		b.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}
			dump(b, e)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		first := true
		for k, e := range v.m {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(b, "%s: ", k)
			dump(b, e)
		}
		b.WriteByte('}')
	case KindPadding:
		b.WriteString("<padding>")
	case KindReserved:
		b.WriteString("<reserved>")
	default:
		b.WriteString("<invalid>")
	}
}
