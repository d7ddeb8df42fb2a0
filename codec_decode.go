package wireproto

import (
	"fmt"
	"math"

	"github.com/tripwire/wireproto/internal/bitio"
	"github.com/tripwire/wireproto/internal/presence"
	"github.com/tripwire/wireproto/internal/trace"
	"github.com/tripwire/wireproto/internal/zc"
)

// DecodeMessage decodes one message named name starting at data[0],
// returning the consumed byte count and the decoded field map (§4.2,
// §6 "Decode output"). It always returns an accurate consumed count, even
// on error: structural errors report progress up to the point of failure;
// validation errors report the full record length so a caller can skip
// past it.
func (c *Codec) DecodeMessage(name string, data []byte) (consumed int, result map[string]Value, err error) {
	consumed, result, err, _ = c.decodeMessageWithPhase(name, data)
	return consumed, result, err
}

// decodeMessageWithPhase is DecodeMessage plus a structural flag the frame
// layer uses to tell an indeterminate-extent failure (structural == true:
// decodeBody itself failed, so consumed is only partial progress, not a
// trustworthy record length) from a validation failure (structural ==
// false: the record fully decoded, so consumed is its real extent and a
// frame can safely skip past it and keep going, per §7 "Structural errors
// that leave the byte count indeterminate abort frame iteration").
func (c *Codec) decodeMessageWithPhase(name string, data []byte) (consumed int, result map[string]Value, err error, structural bool) {
	msg, ok := c.proto.Message(name)
	if !ok {
		return 0, nil, newErr(ErrUnknownName, name, 0, "no such message"), true
	}
	r := bitio.NewReader(data, 0)
	s := newScope(name, 0)
	values, decErr := c.decodeBody(r, &s, msg.Fields)
	consumed = r.BytePos
	if decErr != nil {
		return consumed, values, decErr, true
	}
	if valErr := c.validateBody(data, 0, name, msg.Fields, values); valErr != nil {
		return consumed, values, valErr, false
	}
	return consumed, values, nil, false
}

// decodeStruct decodes a nested struct body, opening a fresh bit cursor
// scope (the reader's own alignment) and a fresh presence frame.
func (c *Codec) decodeStruct(r *bitio.Reader, parent *scope, name, fieldPath string) (map[string]Value, error) {
	if parent.depth+1 > c.opts.maxDepth {
		return nil, newErr(ErrValidation, fieldPath, r.BytePos, "max struct recursion depth exceeded")
	}
	st, ok := c.proto.Struct(name)
	if !ok {
		return nil, newErr(ErrUnknownName, fieldPath, r.BytePos, fmt.Sprintf("no such struct %q", name))
	}
	if err := r.RequireAligned(); err != nil {
		return nil, newErr(ErrValidation, fieldPath, r.BytePos, err.Error())
	}
	s := newScope(fieldPath, parent.depth+1)
	values, err := c.decodeBody(r, &s, st.Fields)
	if err != nil {
		return values, err
	}
	if err := r.RequireAligned(); err != nil {
		return values, newErr(ErrValidation, fieldPath, r.BytePos, "struct body left bit cursor unaligned: "+err.Error())
	}
	return values, nil
}

// decodeBody decodes every field of a message/struct body in declaration
// order into s, returning the resulting field map. Presence dispatch for
// Optional fields is driven by s.presence, installed in-line by a
// preceding PresenceBits/BitmapPresence field (§4.1); the resolved
// protocol's presence.Mapping for this container exists for Resolve's own
// invariant checking and is not needed again here.
func (c *Codec) decodeBody(r *bitio.Reader, s *scope, fields []Field) (map[string]Value, error) {
	values := make(map[string]Value, len(fields))
	trace.Log("scope-enter", "path", s.path, "fields", len(fields))

	for i := range fields {
		f := &fields[i]
		path := s.field(f.Name)

		if !conditionSatisfied(f, s) {
			trace.Log("field-skip-condition", "path", path)
			continue
		}

		v, err := c.decodeField(r, s, f, path)
		if err != nil {
			return values, err
		}
		values[f.Name] = v

		if iv, ok := v.AsInt64(); ok {
			s.ctx[f.Name] = iv
		}
	}

	if err := r.RequireAligned(); err != nil {
		return values, newErr(ErrValidation, s.path, r.BytePos, "scope left bit cursor unaligned: "+err.Error())
	}
	trace.Log("scope-exit", "path", s.path)
	return values, nil
}

func (c *Codec) decodeField(r *bitio.Reader, s *scope, f *Field, path string) (Value, error) {
	switch t := f.Type.(type) {
	case BaseSpec:
		return c.decodeBase(r, t.Type, path)

	case SizedIntSpec:
		bits, err := r.ReadBits(t.Bits)
		if err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		if t.Type.Signed() {
			return Int(signExtend(bits, t.Bits), t.Bits), nil
		}
		return Uint(bits, t.Bits), nil

	case BitfieldSpec:
		bits, err := r.ReadBits(t.Bits)
		if err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return Uint(bits, t.Bits), nil

	case PaddingSpec:
		if err := r.SkipBits(t.Bytes * 8); err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return Padding(), nil

	case ReservedSpec:
		if err := r.SkipBits(t.Bytes * 8); err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return Reserved(), nil

	case PaddingBitsSpec:
		if err := r.SkipBits(t.Bits); err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return Padding(), nil

	case LengthOfSpec:
		return c.decodeLengthCount(r, t.Width, f.Name, path, s)

	case CountOfSpec:
		return c.decodeLengthCount(r, t.Width, f.Name, path, s)

	case PresenceBitsSpec:
		if err := r.RequireAligned(); err != nil {
			return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		if t.Bytes != 1 && t.Bytes != 2 && t.Bytes != 4 {
			return Value{}, newErr(ErrValidation, path, r.BytePos, fmt.Sprintf("presence_bits(%d) must be 1, 2, or 4 bytes", t.Bytes))
		}
		raw, err := r.ReadBits(t.Bytes * 8)
		if err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		// Reassemble the bytes in wire order, then reinterpret per
		// endianness, matching every other multi-byte read.
		buf := make([]byte, t.Bytes)
		for i := 0; i < t.Bytes; i++ {
			buf[i] = byte(raw >> uint(i*8))
		}
		value := readUintBytes(buf, c.opts.endianness)
		s.presence = presence.FixedSource(value)
		trace.Log("presence-install-fixed", "path", path, "value", value)
		return Uint(value, t.Bytes*8), nil

	case BitmapPresenceSpec:
		if err := r.RequireAligned(); err != nil {
			return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		bytes, err := readVariableBitmap(r, t.TotalBits, t.PerBlock)
		if err != nil {
			kind := ErrShortBuffer
			if err == presence.ErrFXTermination {
				kind = ErrValidation
			}
			return Value{}, newErr(kind, path, r.BytePos, err.Error())
		}
		s.presence = presence.VariableSource(bytes, t.PerBlock)
		trace.Log("presence-install-variable", "path", path, "bytes", len(bytes))
		return BytesCopy(bytes), nil

	case StructRefSpec:
		fields, err := c.decodeStruct(r, s, t.Name, path)
		if err != nil {
			return Map(fields), err
		}
		return Map(fields), nil

	case TypeRefSpec:
		inner, err := c.resolveTypeDef(t.Name)
		if err != nil {
			return Value{}, newErr(ErrUnknownName, path, r.BytePos, err.Error())
		}
		return c.decodeFieldInner(r, s, inner, path)

	case ArraySpec:
		n, err := resolveArrayLen(t.Len, s, path, r.BytePos)
		if err != nil {
			return Value{}, err
		}
		return c.decodeElements(r, s, t.Elem, n, path)

	case ListSpec:
		if err := r.RequireAligned(); err != nil {
			return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		raw, err := r.ReadBits(32)
		if err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		buf := make([]byte, 4)
		for i := 0; i < 4; i++ {
			buf[i] = byte(raw >> uint(i*8))
		}
		n := int(readUintBytes(buf, c.opts.endianness))
		return c.decodeElements(r, s, t.Elem, n, path)

	case RepListSpec:
		if err := r.RequireAligned(); err != nil {
			return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		raw, err := r.ReadBits(8)
		if err != nil {
			return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return c.decodeElements(r, s, t.Elem, int(raw), path)

	case OctetsFxSpec:
		if err := r.RequireAligned(); err != nil {
			return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		start := r.BytePos
		for {
			raw, err := r.ReadBits(8)
			if err != nil {
				return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
			}
			if raw&0x80 == 0 {
				break
			}
		}
		return Bytes(r.Data, zc.New(start, r.BytePos-start)), nil

	case OptionalSpec:
		present, err := c.optionalPresent(r, s, path)
		if err != nil {
			return Value{}, err
		}
		if !present {
			return Absent(), nil
		}
		return c.decodeFieldInner(r, s, t.Elem, path)

	default:
		trace.Assert(false, "decodeField: unhandled TypeSpec %T", f.Type)
		return Value{}, nil
	}
}

// decodeFieldInner decodes a bare TypeSpec (no enclosing Field, used for
// Optional's wrapped element and for array/list elements).
func (c *Codec) decodeFieldInner(r *bitio.Reader, s *scope, t TypeSpec, path string) (Value, error) {
	synthetic := Field{Name: path, Type: t}
	return c.decodeField(r, s, &synthetic, path)
}

func (c *Codec) decodeElements(r *bitio.Reader, s *scope, elem TypeSpec, n int, path string) (Value, error) {
	if n < 0 {
		return Value{}, newErr(ErrValidation, path, r.BytePos, fmt.Sprintf("negative element count %d", n))
	}
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := c.decodeFieldInner(r, s, elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return List(out), err
		}
		out = append(out, v)
	}
	return List(out), nil
}

func (c *Codec) decodeBase(r *bitio.Reader, bt BaseType, path string) (Value, error) {
	if err := r.RequireAligned(); err != nil {
		return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
	}
	n := bt.Size()
	raw, err := r.ReadBits(n * 8)
	if err != nil {
		return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(raw >> uint(i*8))
	}
	u := readUintBytes(buf, c.opts.endianness)
	switch bt {
	case Bool:
		return Bool(u != 0), nil
	case F32:
		return Float32(math.Float32frombits(uint32(u))), nil
	case F64:
		return Float64(math.Float64frombits(u)), nil
	default:
		if bt.Signed() {
			return Int(signExtend(u, bt.Bits()), bt.Bits()), nil
		}
		return Uint(u, bt.Bits()), nil
	}
}

func (c *Codec) decodeLengthCount(r *bitio.Reader, width int, fieldName, path string, s *scope) (Value, error) {
	if err := r.RequireAligned(); err != nil {
		return Value{}, newErr(ErrValidation, path, r.BytePos, err.Error())
	}
	nbytes := widthBytes(width)
	raw, err := r.ReadBits(nbytes * 8)
	if err != nil {
		return Value{}, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
	}
	buf := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		buf[i] = byte(raw >> uint(i*8))
	}
	v := readUintBytes(buf, c.opts.endianness)
	s.ctx[fieldName] = int64(v)
	return Uint(v, nbytes*8), nil
}

// optionalPresent consumes one presence bit (or the 1-byte fallback flag)
// for an Optional field.
func (c *Codec) optionalPresent(r *bitio.Reader, s *scope, path string) (bool, error) {
	if s.presence.HasSource() {
		return s.presence.Next(), nil
	}
	if err := r.RequireAligned(); err != nil {
		return false, newErr(ErrValidation, path, r.BytePos, err.Error())
	}
	raw, err := r.ReadBits(8)
	if err != nil {
		return false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
	}
	return raw != 0, nil
}

// readVariableBitmap reads a BitmapPresence byte run per §4.3, enforcing
// the FX-termination invariant for perBlock > 0.
func readVariableBitmap(r *bitio.Reader, totalBits, perBlock int) ([]byte, error) {
	if perBlock <= 0 {
		n := (totalBits + 7) / 8
		buf := make([]byte, n)
		for i := 0; i < n; i++ {
			raw, err := r.ReadBits(8)
			if err != nil {
				return buf[:i], err
			}
			buf[i] = byte(raw)
		}
		return buf, nil
	}

	maxBlocks := presence.MaxVariableBlocks(totalBits, perBlock)
	out := make([]byte, 0, maxBlocks)
	for i := 0; i < maxBlocks; i++ {
		raw, err := r.ReadBits(8)
		if err != nil {
			return out, err
		}
		b := byte(raw)
		out = append(out, b)
		fx := b&0x01 != 0
		if !fx {
			return out, nil
		}
		if i == maxBlocks-1 {
			return out, presence.ErrFXTermination
		}
	}
	return out, nil
}
