package wireproto

// Protocol is the parsed, not-yet-resolved AST handed to [Resolve]. The
// grammar that produces it from source text is out of scope for this
// package (§1); Protocol is the structured boundary between that grammar
// and the binary engine.
type Protocol struct {
	Messages []Message
	Structs  []Struct
	TypeDefs []TypeDef
	Transport *Transport
	Payload   *Payload
}

// Message is a top-level, independently-decodable record shape.
type Message struct {
	Name   string
	Fields []Field

	// ExplicitPresence, if non-nil, is the DSL-supplied bit→name map for
	// this message's presence field: physical bit index (including FX
	// marker positions) to field name. Entries whose name equals
	// [presence.FXMarker] mark extension-bit positions and are stripped
	// during resolution. If nil, a default 0→first-optional,
	// 1→second-optional, … mapping is synthesized.
	ExplicitPresence map[int]string
}

// Struct is a reusable compound type referenced from message or struct
// bodies via [StructRefSpec].
type Struct struct {
	Name   string
	Fields []Field

	// ExplicitPresence is as described on [Message.ExplicitPresence].
	ExplicitPresence map[int]string
}

// TypeDef is a named alias for a TypeSpec, letting a protocol describe a
// reusable scalar shape (e.g. a 14-bit signed altitude field) once and
// reference it from multiple fields by name.
type TypeDef struct {
	Name string
	Type TypeSpec
}

// Transport is an optional frame-level header preceding a concatenation of
// records (§4.4, §6 "Frame boundaries"). Its body is a sequence of fields.
// [Resolve] stores it unchanged; the codec and frame layer in this package
// neither decode nor encode it (the frame functions take the header as a
// byte count or raw bytes).
type Transport struct {
	Fields []Field

	// LengthField, if non-empty, names a LengthOf/CountOf field within
	// Fields that holds the frame length. Nothing in this package reads
	// it; [RewriteLengthField] updates such a field when given its offset.
	LengthField string
}

// PayloadRoute describes how a transport selector value maps to a message
// type (§3 "ResolvedProtocol").
type PayloadRoute struct {
	Message string

	// IsList marks that the payload is a length-prefixed list of this
	// message type rather than a single instance.
	IsList bool

	// Repeated marks that the payload repeats until the enclosing
	// transport's declared length is exhausted, rather than decoding
	// exactly once.
	Repeated bool
}

// Payload maps a transport field's value to the message type that follows
// it on the wire.
type Payload struct {
	// Selector names the Transport field whose decoded integer value
	// chooses a route.
	Selector string
	Routes   map[int64]PayloadRoute
}
