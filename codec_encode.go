package wireproto

import (
	"fmt"
	"math"

	"github.com/tripwire/wireproto/internal/bitio"
	"github.com/tripwire/wireproto/internal/presence"
	"github.com/tripwire/wireproto/internal/trace"
)

// EncodeMessage encodes values into the wire form of message name (§4.2
// "Encode contract"). Missing keys default; padding/reserved/padding-bits
// are always written zero regardless of any supplied value; presence
// fields are derived from which governed Optionals are present, never
// taken from values.
func (c *Codec) EncodeMessage(name string, values map[string]Value) ([]byte, error) {
	msg, ok := c.proto.Message(name)
	if !ok {
		return nil, newErr(ErrUnknownName, name, 0, "no such message")
	}
	w := bitio.NewWriter(nil)
	s := newScope(name, 0)
	if err := c.encodeBody(w, &s, msg.Fields, values); err != nil {
		return nil, err
	}
	return w.Data, nil
}

func (c *Codec) encodeStruct(w *bitio.Writer, parent *scope, name, fieldPath string, values map[string]Value) error {
	if parent.depth+1 > c.opts.maxDepth {
		return newErr(ErrValidation, fieldPath, len(w.Data), "max struct recursion depth exceeded")
	}
	st, ok := c.proto.Struct(name)
	if !ok {
		return newErr(ErrUnknownName, fieldPath, len(w.Data), fmt.Sprintf("no such struct %q", name))
	}
	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, fieldPath, len(w.Data), err.Error())
	}
	s := newScope(fieldPath, parent.depth+1)
	if err := c.encodeBody(w, &s, st.Fields, values); err != nil {
		return err
	}
	return w.RequireAligned()
}

func (c *Codec) encodeBody(w *bitio.Writer, s *scope, fields []Field, values map[string]Value) error {
	trace.Log("scope-enter-encode", "path", s.path, "fields", len(fields))

	for i := range fields {
		f := &fields[i]
		path := s.field(f.Name)

		if !conditionSatisfied(f, s) {
			trace.Log("field-skip-condition-encode", "path", path)
			continue
		}

		switch t := f.Type.(type) {
		case PresenceBitsSpec:
			if err := c.encodePresenceBits(w, s, fields, i, t, path, values); err != nil {
				return err
			}
		case BitmapPresenceSpec:
			if err := c.encodeBitmapPresence(w, s, fields, i, t, path, values); err != nil {
				return err
			}
		case LengthOfSpec:
			n, err := c.measureSibling(s, fields, t.Field, values, measureBytes, path)
			if err != nil {
				return err
			}
			if err := c.writeLengthCount(w, s, f, path, t.Width, n, values); err != nil {
				return err
			}
		case CountOfSpec:
			n, err := c.measureSibling(s, fields, t.Field, values, measureCount, path)
			if err != nil {
				return err
			}
			if err := c.writeLengthCount(w, s, f, path, t.Width, n, values); err != nil {
				return err
			}
		default:
			v, hasValue := values[f.Name]
			if !hasValue {
				v = zeroValueFor(f, f.Type)
			}
			if err := c.encodeField(w, s, f, v, path, values); err != nil {
				return err
			}
			if iv, ok := v.AsInt64(); ok {
				s.ctx[f.Name] = iv
			}
		}
	}

	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, s.path, len(w.Data), "scope left bit cursor unaligned: "+err.Error())
	}
	trace.Log("scope-exit-encode", "path", s.path)
	return nil
}

// encodeField writes one field's value. values is the enclosing scope's
// input map, passed through to nested encodes. LengthOf/CountOf fields are
// not written here: encodeBody measures their target with measureSibling,
// which encodes it to a scratch buffer through this function.
func (c *Codec) encodeField(w *bitio.Writer, s *scope, f *Field, v Value, path string, values map[string]Value) error {
	switch t := f.Type.(type) {
	case BaseSpec:
		return c.encodeBase(w, t.Type, v, path)

	case SizedIntSpec:
		x, _ := v.AsInt64()
		if err := checkConstraint(f, x, path, len(w.Data)); err != nil {
			return err
		}
		w.WriteBits(uint64(x)&bitMask(t.Bits), t.Bits)
		return nil

	case BitfieldSpec:
		x, _ := v.AsUint64()
		w.WriteBits(x&bitMask(t.Bits), t.Bits)
		return nil

	case PaddingSpec:
		for i := 0; i < t.Bytes; i++ {
			w.WriteBits(0, 8)
		}
		return nil

	case ReservedSpec:
		for i := 0; i < t.Bytes; i++ {
			w.WriteBits(0, 8)
		}
		return nil

	case PaddingBitsSpec:
		w.WriteZeroBits(t.Bits)
		return nil

	case LengthOfSpec, CountOfSpec:
		trace.Assert(false, "encodeField: LengthOf/CountOf must be dispatched from encodeBody, not as an element type")
		return nil

	case StructRefSpec:
		fields, _ := v.AsMap()
		return c.encodeStruct(w, s, t.Name, path, fields)

	case TypeRefSpec:
		inner, err := c.resolveTypeDef(t.Name)
		if err != nil {
			return newErr(ErrUnknownName, path, len(w.Data), err.Error())
		}
		return c.encodeFieldInner(w, s, inner, v, path, values)

	case ArraySpec:
		n, err := resolveArrayLen(t.Len, s, path, len(w.Data))
		if err != nil {
			return err
		}
		return c.encodeElements(w, s, t.Elem, v, n, path)

	case ListSpec:
		if err := w.RequireAligned(); err != nil {
			return newErr(ErrValidation, path, len(w.Data), err.Error())
		}
		elems, _ := v.AsList()
		c.writeUintField(w, uint64(len(elems)), 4)
		return c.encodeElements(w, s, t.Elem, v, len(elems), path)

	case RepListSpec:
		if err := w.RequireAligned(); err != nil {
			return newErr(ErrValidation, path, len(w.Data), err.Error())
		}
		elems, _ := v.AsList()
		if len(elems) > 0xff {
			return newErr(ErrLengthMismatch, path, len(w.Data), fmt.Sprintf("replist has %d elements, exceeds 8-bit repetition factor", len(elems)))
		}
		c.writeUintField(w, uint64(len(elems)), 1)
		return c.encodeElements(w, s, t.Elem, v, len(elems), path)

	case OctetsFxSpec:
		if err := w.RequireAligned(); err != nil {
			return newErr(ErrValidation, path, len(w.Data), err.Error())
		}
		b, _ := v.AsBytes()
		w.Data = append(w.Data, b...)
		return nil

	case OptionalSpec:
		present, inner := presentAndInner(v)
		if !s.presence.HasSource() {
			// No PresenceBits/BitmapPresence governs this Optional: fall
			// back to a 1-byte boolean presence flag, mirroring
			// optionalPresent's decode-side fallback.
			if err := w.RequireAligned(); err != nil {
				return newErr(ErrValidation, path, len(w.Data), err.Error())
			}
			var flag uint64
			if present {
				flag = 1
			}
			c.writeUintField(w, flag, 1)
		}
		if !present {
			return nil
		}
		return c.encodeFieldInner(w, s, t.Elem, inner, path, values)

	default:
		trace.Assert(false, "encodeField: unhandled TypeSpec %T", f.Type)
		return nil
	}
}

func (c *Codec) encodeFieldInner(w *bitio.Writer, s *scope, t TypeSpec, v Value, path string, values map[string]Value) error {
	synthetic := Field{Name: path, Type: t}
	return c.encodeField(w, s, &synthetic, v, path, values)
}

func (c *Codec) encodeElements(w *bitio.Writer, s *scope, elem TypeSpec, v Value, n int, path string) error {
	elems, _ := v.AsList()
	if len(elems) != n {
		return newErr(ErrLengthMismatch, path, len(w.Data), fmt.Sprintf("expected %d element(s), got %d", n, len(elems)))
	}
	for i, e := range elems {
		p := fmt.Sprintf("%s[%d]", path, i)
		if err := c.encodeFieldInner(w, s, elem, e, p, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeBase(w *bitio.Writer, bt BaseType, v Value, path string) error {
	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, path, len(w.Data), err.Error())
	}
	switch bt {
	case Bool:
		b, _ := v.AsBool()
		var x uint64
		if b {
			x = 1
		}
		c.writeUintField(w, x, 1)
	case F32:
		f, _ := v.AsFloat32()
		c.writeUintField(w, uint64(math.Float32bits(f)), 4)
	case F64:
		f, _ := v.AsFloat64()
		c.writeUintField(w, math.Float64bits(f), 8)
	default:
		x, _ := v.AsUint64()
		c.writeUintField(w, x, bt.Size())
	}
	return nil
}

// writeUintField writes an n-byte unsigned integer at the codec's
// endianness, byte-aligned.
func (c *Codec) writeUintField(w *bitio.Writer, v uint64, n int) {
	buf := make([]byte, n)
	writeUintBytes(buf, v, c.opts.endianness)
	for i := 0; i < n; i++ {
		w.WriteBits(uint64(buf[i]), 8)
	}
}

func bitMask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(bits) - 1
}

// presentAndInner implements the "absent vs present" design note (§9): a
// missing or explicitly-absent value is absent; a single-element list or a
// bare value is present, and the inner value is unwrapped from the list if
// needed.
func presentAndInner(v Value) (present bool, inner Value) {
	if v.IsAbsent() {
		return false, Value{}
	}
	if v.Kind() == KindList {
		elems, _ := v.AsList()
		if len(elems) == 0 {
			return false, Value{}
		}
		return true, elems[0]
	}
	return true, v
}

// zeroValueFor produces the type-specific default used by encode when a
// field's value is missing from the input map (§4.2 "Encode contract").
func zeroValueFor(f *Field, t TypeSpec) Value {
	if f.Default != nil {
		return Int(*f.Default, 64)
	}
	switch tt := t.(type) {
	case BaseSpec:
		switch tt.Type {
		case Bool:
			return Bool(false)
		case F32:
			return Float32(0)
		case F64:
			return Float64(0)
		default:
			if tt.Type.Signed() {
				return Int(0, tt.Type.Bits())
			}
			return Uint(0, tt.Type.Bits())
		}
	case SizedIntSpec:
		if tt.Type.Signed() {
			return Int(0, tt.Bits)
		}
		return Uint(0, tt.Bits)
	case BitfieldSpec:
		return Uint(0, tt.Bits)
	case OptionalSpec:
		return Absent()
	case StructRefSpec:
		return Map(nil)
	case ArraySpec, ListSpec, RepListSpec:
		return List(nil)
	case OctetsFxSpec:
		return BytesCopy([]byte{0x00})
	default:
		return Value{}
	}
}

type measureKind uint8

const (
	measureBytes measureKind = iota
	measureCount
)

// measureSibling finds the field named targetName among fields and
// measures it: its encoded byte length (measureBytes) or its element
// count (measureCount), per §4.2's LengthOf/CountOf dispatch. The
// measurement runs a throwaway encode of the target field's current value
// so byte-length measurement works uniformly across Bytes, OctetsFx,
// List/RepList/Array, and StructRef targets.
func (c *Codec) measureSibling(s *scope, fields []Field, targetName string, values map[string]Value, kind measureKind, path string) (int, error) {
	var target *Field
	for i := range fields {
		if fields[i].Name == targetName {
			target = &fields[i]
			break
		}
	}
	if target == nil {
		return 0, newErr(ErrUnknownName, path, 0, fmt.Sprintf("references unknown sibling field %q", targetName))
	}
	v, ok := values[targetName]
	if !ok {
		v = zeroValueFor(target, target.Type)
	}

	if kind == measureCount {
		elems, ok := v.AsList()
		if !ok {
			return 0, newErr(ErrValidation, path, 0, fmt.Sprintf("count_of(%s) target is not a sequence", targetName))
		}
		return len(elems), nil
	}

	scratch := bitio.NewWriter(nil)
	scratchScope := scope{presence: s.presence, ctx: s.ctx, depth: s.depth, path: s.path}
	if err := c.encodeField(scratch, &scratchScope, target, v, targetName, values); err != nil {
		return 0, err
	}
	return len(scratch.Data), nil
}

// writeLengthCount writes the measured value for a LengthOf/CountOf field,
// rejecting an explicitly-supplied value that disagrees with the
// measurement (§7 ErrLengthMismatch).
func (c *Codec) writeLengthCount(w *bitio.Writer, s *scope, f *Field, path string, width, measured int, values map[string]Value) error {
	if supplied, ok := values[f.Name]; ok {
		if x, ok := supplied.AsInt64(); ok && x != int64(measured) {
			return newErr(ErrLengthMismatch, path, len(w.Data), fmt.Sprintf("supplied value %d disagrees with measured %d", x, measured))
		}
	}
	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, path, len(w.Data), err.Error())
	}
	c.writeUintField(w, uint64(measured), widthBytes(width))
	s.ctx[f.Name] = int64(measured)
	return nil
}

// collectOptionalRun returns the contiguous run of OptionalSpec fields
// starting at fields[start:], matching the same structural collection
// derivePresence performs at resolve time (§4.1, §4.5).
func collectOptionalRun(fields []Field, start int) []Field {
	var run []Field
	for i := start; i < len(fields); i++ {
		if _, ok := fields[i].Type.(OptionalSpec); !ok {
			break
		}
		run = append(run, fields[i])
	}
	return run
}

// presentFlags evaluates, for each candidate in a presence-governed
// Optional run, whether it consumes a bit and whether that bit is set.
// Conditionally-unsatisfied candidates consume no bit at all (§9
// "Conditional presence"): the returned slice only has one entry per
// candidate that actually participates, in order.
func presentFlags(s *scope, run []Field, values map[string]Value) []bool {
	flags := make([]bool, 0, len(run))
	for i := range run {
		f := &run[i]
		if !conditionSatisfied(f, s) {
			continue
		}
		v, ok := values[f.Name]
		if !ok {
			flags = append(flags, false)
			continue
		}
		present, _ := presentAndInner(v)
		flags = append(flags, present)
	}
	return flags
}

func (c *Codec) encodePresenceBits(w *bitio.Writer, s *scope, fields []Field, idx int, t PresenceBitsSpec, path string, values map[string]Value) error {
	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, path, len(w.Data), err.Error())
	}
	run := collectOptionalRun(fields, idx+1)
	flags := presentFlags(s, run, values)
	value := presence.BuildFixed(flags)
	c.writeUintField(w, value, t.Bytes)
	s.presence = presence.FixedSource(value)
	s.ctx[fields[idx].Name] = int64(value)
	return nil
}

func (c *Codec) encodeBitmapPresence(w *bitio.Writer, s *scope, fields []Field, idx int, t BitmapPresenceSpec, path string, values map[string]Value) error {
	if err := w.RequireAligned(); err != nil {
		return newErr(ErrValidation, path, len(w.Data), err.Error())
	}
	run := collectOptionalRun(fields, idx+1)
	flags := presentFlags(s, run, values)
	bytes := presence.BuildVariable(flags, t.PerBlock)
	if n := (t.TotalBits + 7) / 8; t.PerBlock <= 0 && len(bytes) < n {
		bytes = append(bytes, make([]byte, n-len(bytes))...)
	}
	for _, b := range bytes {
		w.WriteBits(uint64(b), 8)
	}
	s.presence = presence.VariableSource(bytes, t.PerBlock)
	return nil
}
