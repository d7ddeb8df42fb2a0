package wireproto

// BaseType is a natural-size scalar type: a fixed-width integer, a bool, or
// a floating point number.
type BaseType uint8

// The base types named in the data model (§3).
const (
	U8 BaseType = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	Bool
	F32
	F64
)

// Size returns the fixed byte size of bt on the wire.
func (bt BaseType) Size() int {
	switch bt {
	case U8, I8, Bool:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		panic("wireproto: invalid BaseType")
	}
}

// Signed reports whether bt is a signed integer type.
func (bt BaseType) Signed() bool {
	switch bt {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// Bits returns the natural bit width of bt (Size() * 8).
func (bt BaseType) Bits() int { return bt.Size() * 8 }

func (bt BaseType) String() string {
	switch bt {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case Bool:
		return "bool"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "invalid"
	}
}
