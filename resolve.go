package wireproto

import (
	"fmt"

	"github.com/tripwire/wireproto/internal/presence"
)

// ResolvedProtocol is an immutable, validated, indexed form of a
// [Protocol]: the shape the codec, walk engine, and frame layer all borrow
// for the lifetime of an operation (§3, §5).
type ResolvedProtocol struct {
	messages map[string]*Message
	structs  map[string]*Struct
	typedefs map[string]*TypeDef

	messagePresence map[string]*presence.Mapping
	structPresence  map[string]*presence.Mapping

	transport *Transport
	payload   *Payload
}

// Message looks up a message definition by name.
func (r *ResolvedProtocol) Message(name string) (*Message, bool) {
	m, ok := r.messages[name]
	return m, ok
}

// Struct looks up a struct definition by name.
func (r *ResolvedProtocol) Struct(name string) (*Struct, bool) {
	s, ok := r.structs[name]
	return s, ok
}

// TypeDef looks up a named type alias.
func (r *ResolvedProtocol) TypeDef(name string) (*TypeDef, bool) {
	t, ok := r.typedefs[name]
	return t, ok
}

// MessagePresence returns the derived presence mapping for a message, if
// it has one.
func (r *ResolvedProtocol) MessagePresence(name string) (*presence.Mapping, bool) {
	m, ok := r.messagePresence[name]
	return m, ok
}

// StructPresence returns the derived presence mapping for a struct, if it
// has one.
func (r *ResolvedProtocol) StructPresence(name string) (*presence.Mapping, bool) {
	m, ok := r.structPresence[name]
	return m, ok
}

// Transport returns the protocol's transport header descriptor, if any.
func (r *ResolvedProtocol) Transport() *Transport { return r.transport }

// Payload returns the protocol's payload-selector descriptor, if any.
func (r *ResolvedProtocol) Payload() *Payload { return r.payload }

// Resolve validates p and builds a [ResolvedProtocol]. See §4.1 for the
// invariants checked here:
//
//  1. Every StructRef resolves to a defined struct, and every TypeRef
//     resolves to a defined type_def (including within a type_def's own
//     body, so a chained TypeRef or an aliased StructRef is also checked).
//  2. Every PresenceBits/BitmapPresence is immediately followed by one or
//     more Optional fields; the presence mapping enumerates exactly those
//     optionals in order.
//  3. Names are unique within their namespace.
//  4. Bit-packed fields consume a whole number of bytes within their
//     enclosing scope (checked authoritatively at decode/encode/walk time;
//     this function additionally rejects the subset of violations it can
//     prove statically, without expanding Array/List/RepList element
//     counts).
//  5. BitmapPresence FX/byte-count rules.
func Resolve(p *Protocol) (*ResolvedProtocol, error) {
	r := &ResolvedProtocol{
		messages:        map[string]*Message{},
		structs:         map[string]*Struct{},
		typedefs:        map[string]*TypeDef{},
		messagePresence: map[string]*presence.Mapping{},
		structPresence:  map[string]*presence.Mapping{},
		transport:       p.Transport,
		payload:         p.Payload,
	}

	for i := range p.TypeDefs {
		td := &p.TypeDefs[i]
		if _, dup := r.typedefs[td.Name]; dup {
			return nil, fmt.Errorf("wireproto: duplicate type definition %q", td.Name)
		}
		r.typedefs[td.Name] = td
	}
	for i := range p.Structs {
		s := &p.Structs[i]
		if _, dup := r.structs[s.Name]; dup {
			return nil, fmt.Errorf("wireproto: duplicate struct %q", s.Name)
		}
		r.structs[s.Name] = s
	}
	for i := range p.Messages {
		m := &p.Messages[i]
		if _, dup := r.messages[m.Name]; dup {
			return nil, fmt.Errorf("wireproto: duplicate message %q", m.Name)
		}
		r.messages[m.Name] = m
	}

	// Invariant 1: every StructRef and TypeRef resolves.
	for _, m := range r.messages {
		if err := checkStructRefs(r, m.Name, m.Fields); err != nil {
			return nil, err
		}
	}
	for _, s := range r.structs {
		if err := checkStructRefs(r, s.Name, s.Fields); err != nil {
			return nil, err
		}
	}
	for _, td := range p.TypeDefs {
		if err := checkStructRefsInSpec(r, "typedef", td.Name, td.Type); err != nil {
			return nil, err
		}
	}

	// Invariants 2, 5, and presence-mapping derivation.
	for _, m := range r.messages {
		mapping, err := derivePresence(m.Name, m.Fields, m.ExplicitPresence)
		if err != nil {
			return nil, err
		}
		if mapping != nil {
			r.messagePresence[m.Name] = mapping
		}
	}
	for _, s := range r.structs {
		mapping, err := derivePresence(s.Name, s.Fields, s.ExplicitPresence)
		if err != nil {
			return nil, err
		}
		if mapping != nil {
			r.structPresence[s.Name] = mapping
		}
	}

	// Invariant 3 (name uniqueness within a container's own field list) and
	// precompute saturating constraints.
	for _, m := range r.messages {
		if err := checkFieldNamesUnique(m.Name, m.Fields); err != nil {
			return nil, err
		}
		precomputeSaturating(m.Fields)
	}
	for _, s := range r.structs {
		if err := checkFieldNamesUnique(s.Name, s.Fields); err != nil {
			return nil, err
		}
		precomputeSaturating(s.Fields)
	}

	// Invariant 4, best-effort static portion: a scope consisting solely of
	// non-array bit-packed/whole-byte fields must sum to a whole number of
	// bytes. Scopes containing Array/List/RepList/StructRef are left to the
	// runtime check, since their contribution isn't statically known here.
	for _, m := range r.messages {
		if err := checkStaticAlignment(m.Name, m.Fields); err != nil {
			return nil, err
		}
	}
	for _, s := range r.structs {
		if err := checkStaticAlignment(s.Name, s.Fields); err != nil {
			return nil, err
		}
	}

	if p.Payload != nil {
		for val, route := range p.Payload.Routes {
			if _, ok := r.messages[route.Message]; !ok {
				return nil, fmt.Errorf("wireproto: payload route for %v names unknown message %q", val, route.Message)
			}
		}
	}

	return r, nil
}

func checkFieldNamesUnique(container string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return fmt.Errorf("wireproto: duplicate field name %q in %q", f.Name, container)
		}
		seen[f.Name] = true
	}
	return nil
}

func checkStructRefs(r *ResolvedProtocol, container string, fields []Field) error {
	for _, f := range fields {
		if err := checkStructRefsInSpec(r, container, f.Name, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkStructRefsInSpec(r *ResolvedProtocol, container, field string, t TypeSpec) error {
	switch v := t.(type) {
	case StructRefSpec:
		if _, ok := r.structs[v.Name]; !ok {
			return fmt.Errorf("%w: %s.%s references undefined struct %q", ErrUnknownName, container, field, v.Name)
		}
	case TypeRefSpec:
		if _, ok := r.typedefs[v.Name]; !ok {
			return fmt.Errorf("%w: %s.%s references undefined type %q", ErrUnknownName, container, field, v.Name)
		}
	case ArraySpec:
		return checkStructRefsInSpec(r, container, field, v.Elem)
	case ListSpec:
		return checkStructRefsInSpec(r, container, field, v.Elem)
	case RepListSpec:
		return checkStructRefsInSpec(r, container, field, v.Elem)
	case OptionalSpec:
		return checkStructRefsInSpec(r, container, field, v.Elem)
	}
	return nil
}

// derivePresence locates the first presence field in fields and derives
// its mapping, per §4.1/§4.5. Returns (nil, nil) if the container has no
// presence field.
func derivePresence(container string, fields []Field, explicit map[int]string) (*presence.Mapping, error) {
	idx := -1
	for i, f := range fields {
		switch f.Type.(type) {
		case PresenceBitsSpec, BitmapPresenceSpec:
			idx = i
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	presenceField := fields[idx]
	perBlock := 0
	if bp, ok := presenceField.Type.(BitmapPresenceSpec); ok {
		perBlock = bp.PerBlock
	}

	var candidates []presence.Candidate
	for _, f := range fields[idx+1:] {
		if _, ok := f.Type.(OptionalSpec); !ok {
			break
		}
		candidates = append(candidates, presence.Candidate{Name: f.Name, Conditional: f.If != nil})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s.%s is a presence field with no following Optional fields", ErrValidation, container, presenceField.Name)
	}

	mapping, err := presence.Derive(presenceField.Name, candidates, explicit, perBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, container, err)
	}
	return mapping, nil
}

func precomputeSaturating(fields []Field) {
	for i := range fields {
		f := &fields[i]
		if f.Constraint == nil {
			continue
		}
		var bt BaseType
		switch t := f.Type.(type) {
		case BaseSpec:
			bt = t.Type
		case SizedIntSpec:
			bt = t.Type
		default:
			continue
		}
		computeSaturating(f.Constraint, bt)
	}
}

// checkStaticAlignment rejects the provable subset of invariant-4
// violations: a run of fields between presence-free scope boundaries whose
// total bit contribution is statically known (Base, SizedInt, Bitfield,
// PaddingBits, LengthOf/CountOf, PresenceBits, OctetsFx-free) must sum to a
// multiple of 8 by the end of the scope. Any Array/List/RepList/StructRef
// bails out of the static check for that scope; the runtime bit cursor is
// authoritative in that case.
func checkStaticAlignment(container string, fields []Field) error {
	bits := 0
	for _, f := range fields {
		switch t := f.Type.(type) {
		case BaseSpec:
			bits += t.Type.Bits()
		case SizedIntSpec:
			bits += t.Bits
		case BitfieldSpec:
			bits += t.Bits
		case PaddingBitsSpec:
			bits += t.Bits
		case PaddingSpec:
			bits += t.Bytes * 8
		case ReservedSpec:
			bits += t.Bytes * 8
		case LengthOfSpec:
			bits += widthOrDefault(t.Width)
		case CountOfSpec:
			bits += widthOrDefault(t.Width)
		case PresenceBitsSpec:
			bits += t.Bytes * 8
		case OptionalSpec:
			// Optional wraps a variably-present field; its contribution
			// depends on runtime presence, so it cannot be statically
			// summed. Bail out of the static check for this scope.
			return nil
		default:
			// Array/List/RepList/StructRef/BitmapPresence/OctetsFx: not
			// statically sized here. Leave it to the runtime check.
			return nil
		}
	}
	if bits%8 != 0 {
		return fmt.Errorf("%w: %s: fields sum to %d bits, not byte-aligned at scope end", ErrValidation, container, bits)
	}
	return nil
}

func widthOrDefault(w int) int {
	if w <= 0 {
		return LengthWidthDefault
	}
	return w
}
