package wireproto

// Condition is a conditional-presence predicate: the owning field is
// present only when the sibling field named Field holds the integer value
// Equals.
type Condition struct {
	Field  string
	Equals int64
}

// Field is one field of a message or struct body.
type Field struct {
	Name string
	Type TypeSpec

	// Default, if non-nil, overrides the type-specific zero default used
	// by encode when this field's value is missing from the input map.
	Default *int64

	// Constraint, if non-nil, is checked against this field's integer
	// value after decode (codec) or during traversal (walk).
	Constraint *Constraint

	// If, if non-nil, makes this field conditionally present: it is
	// skipped entirely (no bytes consumed, nothing emitted) unless the
	// named sibling field currently holds the given literal.
	If *Condition

	// Quantum is an opaque display hint (e.g. "0.25 m/s" per-LSB scaling)
	// carried through for presentation-layer consumers. The codec and
	// walk engine never interpret it; pretty-printing with physical units
	// is out of scope for this package.
	Quantum string
}
