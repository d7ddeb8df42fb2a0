package wireproto

// TypeSpec is the field shape used by messages and structs (§3). It is a
// closed algebraic type: every implementation lives in this package, and
// external callers are expected to type-switch over it the way the codec
// and walk engine do.
type TypeSpec interface {
	isTypeSpec()
}

// ArrayLen is the length of an [Array] TypeSpec: either a compile-time
// constant or a reference to another field in the same scope.
type ArrayLen struct {
	// Const is the element count, used when FieldRef == "".
	Const int
	// FieldRef is the name of a sibling LengthOf/CountOf field (or any
	// integer-valued field) supplying the element count at decode/walk
	// time. Takes precedence over Const when non-empty.
	FieldRef string
}

// BaseSpec is a natural-size integer or float (§3 "Base").
type BaseSpec struct{ Type BaseType }

func (BaseSpec) isTypeSpec() {}

// SizedIntSpec is an integer stored in a non-natural number of bits,
// sign-extended on decode if Type is signed.
type SizedIntSpec struct {
	Type BaseType
	Bits int
}

func (SizedIntSpec) isTypeSpec() {}

// BitfieldSpec is an unsigned value read from Bits bits, without sign
// extension.
type BitfieldSpec struct{ Bits int }

func (BitfieldSpec) isTypeSpec() {}

// PaddingSpec skips Bytes bytes on decode; encode writes zero.
type PaddingSpec struct{ Bytes int }

func (PaddingSpec) isTypeSpec() {}

// ReservedSpec skips Bytes bytes on decode; encode writes zero. Identical
// wire behavior to PaddingSpec, kept as a distinct type so a resolved
// protocol's field shape documents intent (reserved-for-future-use vs.
// structural alignment padding).
type ReservedSpec struct{ Bytes int }

func (ReservedSpec) isTypeSpec() {}

// PaddingBitsSpec is the bit-cursor sibling of PaddingSpec/ReservedSpec:
// it occupies Bits bits inside the current bit cursor rather than whole
// bytes.
type PaddingBitsSpec struct{ Bits int }

func (PaddingBitsSpec) isTypeSpec() {}

// LengthWidthDefault is the wire width, in bits, used by LengthOfSpec and
// CountOfSpec when Width is left at zero. The Open Question in §9 leaves
// this pluggable per-field; this package documents 32 bits as the
// baseline, and a nonzero Width overrides it for one field.
const LengthWidthDefault = 32

// LengthOfSpec is an integer prefix giving the byte length of the field
// named Field, written/read in Width bits (Width == 0 means
// [LengthWidthDefault]).
type LengthOfSpec struct {
	Field string
	Width int
}

func (LengthOfSpec) isTypeSpec() {}

// CountOfSpec is an integer prefix giving the element count of the field
// named Field, written/read in Width bits (Width == 0 means
// [LengthWidthDefault]).
type CountOfSpec struct {
	Field string
	Width int
}

func (CountOfSpec) isTypeSpec() {}

// PresenceBitsSpec is a fixed-size presence bitmap of Bytes bytes
// (Bytes must be 1, 2, or 4); its bits drive subsequent Optional fields.
type PresenceBitsSpec struct{ Bytes int }

func (PresenceBitsSpec) isTypeSpec() {}

// BitmapPresenceSpec is a variable-length FX-terminated presence bitmap.
//
// TotalBits is the number of logical (data-only) presence bits it governs.
// PerBlock is the number of data bits per byte block before the FX
// extension bit (0 means there is no FX form: the bitmap is a fixed
// ceil(TotalBits/8) bytes with no extension termination).
type BitmapPresenceSpec struct {
	TotalBits int
	PerBlock  int
}

func (BitmapPresenceSpec) isTypeSpec() {}

// StructRefSpec is a nominal reference to a struct defined in the protocol.
type StructRefSpec struct{ Name string }

func (StructRefSpec) isTypeSpec() {}

// ArraySpec is a fixed- or field-referenced-length sequence; the count is
// not itself on the wire.
type ArraySpec struct {
	Elem TypeSpec
	Len  ArrayLen
}

func (ArraySpec) isTypeSpec() {}

// ListSpec is a sequence prefixed by a 32-bit element count.
type ListSpec struct{ Elem TypeSpec }

func (ListSpec) isTypeSpec() {}

// RepListSpec is a sequence prefixed by an 8-bit repetition factor.
type RepListSpec struct{ Elem TypeSpec }

func (RepListSpec) isTypeSpec() {}

// OctetsFxSpec is a variable-length byte run terminated by a byte whose
// high bit is clear (7 payload bits per byte); the terminating byte is
// included in the decoded bytes.
type OctetsFxSpec struct{}

func (OctetsFxSpec) isTypeSpec() {}

// OptionalSpec is a presence-governed field: present iff the current
// presence source's next bit is 1 (or, with no active presence source in
// scope, iff a fallback 1-byte boolean flag is nonzero).
type OptionalSpec struct{ Elem TypeSpec }

func (OptionalSpec) isTypeSpec() {}

// TypeRefSpec is a nominal reference to a named [TypeDef]: decode, encode,
// and walk treat it exactly as an inline occurrence of the type_def's
// underlying TypeSpec, looked up by name at call time (§3 "name → type_def
// lookup").
type TypeRefSpec struct{ Name string }

func (TypeRefSpec) isTypeSpec() {}
