package wireproto

import (
	"fmt"

	"github.com/tripwire/wireproto/internal/bitio"
	"github.com/tripwire/wireproto/internal/presence"
	"github.com/tripwire/wireproto/internal/trace"
)

// walkOptions selects which of the four externally-visible walk
// operations (§4.3) a single traversal performs: plain extent computation
// does neither; validate checks constraints; zero clears padding/reserved
// bytes/bits in place; the two combine for the one-pass
// validate-and-zero walker.
type walkOptions struct {
	validate bool
	zero     bool
}

// MessageExtent returns the byte length of the message named name starting
// at data[0], without constructing a value tree (§4.3 "message_extent").
func (c *Codec) MessageExtent(data []byte, name string) (int, error) {
	return c.walk(data, name, walkOptions{})
}

// ValidateMessage checks every constrained field of the message named name
// starting at data[0], without constructing a value tree or mutating data
// (§4.3 "validate_message_in_place").
func (c *Codec) ValidateMessage(data []byte, name string) (int, error) {
	return c.walk(data, name, walkOptions{validate: true})
}

// ZeroPaddingAndReserved overwrites every Padding/Reserved/PaddingBits
// field of the message named name starting at data[0] with zero, in
// place, without validating constraints (§4.3
// "zero_padding_reserved_in_place").
func (c *Codec) ZeroPaddingAndReserved(data []byte, name string) (int, error) {
	return c.walk(data, name, walkOptions{zero: true})
}

// ValidateAndZeroMessage performs both passes in one traversal: a
// companion one-pass walker required by §9 ("Zero-copy walk") since
// decoding millions of records per second to do this twice would be
// unaffordable.
func (c *Codec) ValidateAndZeroMessage(data []byte, name string) (int, error) {
	return c.walk(data, name, walkOptions{validate: true, zero: true})
}

func (c *Codec) walk(data []byte, name string, opts walkOptions) (int, error) {
	msg, ok := c.proto.Message(name)
	if !ok {
		return 0, newErr(ErrUnknownName, name, 0, "no such message")
	}
	r := bitio.NewReader(data, 0)
	s := newScope(name, 0)
	err := c.walkBody(r, &s, msg.Fields, opts)
	return r.BytePos, err
}

func (c *Codec) walkStruct(r *bitio.Reader, parent *scope, name, fieldPath string, opts walkOptions) error {
	if parent.depth+1 > c.opts.maxDepth {
		return newErr(ErrValidation, fieldPath, r.BytePos, "max struct recursion depth exceeded")
	}
	st, ok := c.proto.Struct(name)
	if !ok {
		return newErr(ErrUnknownName, fieldPath, r.BytePos, fmt.Sprintf("no such struct %q", name))
	}
	if err := r.RequireAligned(); err != nil {
		return newErr(ErrValidation, fieldPath, r.BytePos, err.Error())
	}
	s := newScope(fieldPath, parent.depth+1)
	if err := c.walkBody(r, &s, st.Fields, opts); err != nil {
		return err
	}
	return r.RequireAligned()
}

func (c *Codec) walkBody(r *bitio.Reader, s *scope, fields []Field, opts walkOptions) error {
	trace.Log("walk-scope-enter", "path", s.path, "fields", len(fields))
	for i := range fields {
		f := &fields[i]
		path := s.field(f.Name)

		if !conditionSatisfied(f, s) {
			continue
		}

		iv, hasInt, err := c.walkField(r, s, f, path, opts)
		if err != nil {
			return err
		}
		if hasInt {
			s.ctx[f.Name] = iv
		}
	}
	if err := r.RequireAligned(); err != nil {
		return newErr(ErrValidation, s.path, r.BytePos, "scope left bit cursor unaligned: "+err.Error())
	}
	return nil
}

// walkField advances the cursor past one field, exactly as the codec's
// decode would, optionally validating and/or zeroing as it goes. It
// returns the field's integer value when one was read (for ctx/Condition
// bookkeeping and constraint checks), matching decodeBody's side effect.
func (c *Codec) walkField(r *bitio.Reader, s *scope, f *Field, path string, opts walkOptions) (int64, bool, error) {
	switch t := f.Type.(type) {
	case BaseSpec:
		if t.Type == F32 || t.Type == F64 {
			_, err := c.walkBaseRaw(r, t.Type, path)
			return 0, false, err
		}
		x, err := c.walkBaseRaw(r, t.Type, path)
		if err != nil {
			return 0, false, err
		}
		if opts.validate {
			if err := checkConstraint(f, x, path, r.BytePos); err != nil {
				return 0, false, err
			}
		}
		return x, true, nil

	case SizedIntSpec:
		bits, err := r.ReadBits(t.Bits)
		if err != nil {
			return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		x := signExtend(bits, t.Bits)
		if !t.Type.Signed() {
			x = int64(bits)
		}
		if opts.validate {
			if err := checkConstraint(f, x, path, r.BytePos); err != nil {
				return 0, false, err
			}
		}
		return x, true, nil

	case BitfieldSpec:
		bits, err := r.ReadBits(t.Bits)
		if err != nil {
			return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		if opts.validate {
			if err := checkConstraint(f, int64(bits), path, r.BytePos); err != nil {
				return 0, false, err
			}
		}
		return int64(bits), true, nil

	case PaddingSpec:
		return 0, false, c.walkSkipZeroBytes(r, t.Bytes, opts)

	case ReservedSpec:
		return 0, false, c.walkSkipZeroBytes(r, t.Bytes, opts)

	case PaddingBitsSpec:
		return 0, false, c.walkSkipZeroBits(r, t.Bits, opts)

	case LengthOfSpec:
		return c.walkLengthCount(r, f, t.Width, path, opts)
	case CountOfSpec:
		return c.walkLengthCount(r, f, t.Width, path, opts)

	case PresenceBitsSpec:
		if err := r.RequireAligned(); err != nil {
			return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		if t.Bytes != 1 && t.Bytes != 2 && t.Bytes != 4 {
			return 0, false, newErr(ErrValidation, path, r.BytePos, fmt.Sprintf("presence_bits(%d) must be 1, 2, or 4 bytes", t.Bytes))
		}
		buf := make([]byte, t.Bytes)
		for i := 0; i < t.Bytes; i++ {
			raw, err := r.ReadBits(8)
			if err != nil {
				return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
			}
			buf[i] = byte(raw)
		}
		value := readUintBytes(buf, c.opts.endianness)
		s.presence = presence.FixedSource(value)
		return int64(value), true, nil

	case BitmapPresenceSpec:
		if err := r.RequireAligned(); err != nil {
			return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		bytes, err := readVariableBitmap(r, t.TotalBits, t.PerBlock)
		if err != nil {
			kind := ErrShortBuffer
			if err == presence.ErrFXTermination {
				kind = ErrValidation
			}
			return 0, false, newErr(kind, path, r.BytePos, err.Error())
		}
		s.presence = presence.VariableSource(bytes, t.PerBlock)
		return 0, false, nil

	case StructRefSpec:
		return 0, false, c.walkStruct(r, s, t.Name, path, opts)

	case TypeRefSpec:
		inner, err := c.resolveTypeDef(t.Name)
		if err != nil {
			return 0, false, newErr(ErrUnknownName, path, r.BytePos, err.Error())
		}
		synthetic := Field{Name: f.Name, Type: inner, Constraint: f.Constraint}
		return c.walkField(r, s, &synthetic, path, opts)

	case ArraySpec:
		n, err := resolveArrayLen(t.Len, s, path, r.BytePos)
		if err != nil {
			return 0, false, err
		}
		return 0, false, c.walkElements(r, s, t.Elem, n, path, opts)

	case ListSpec:
		if err := r.RequireAligned(); err != nil {
			return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		buf := make([]byte, 4)
		for i := 0; i < 4; i++ {
			raw, err := r.ReadBits(8)
			if err != nil {
				return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
			}
			buf[i] = byte(raw)
		}
		n := int(readUintBytes(buf, c.opts.endianness))
		return 0, false, c.walkElements(r, s, t.Elem, n, path, opts)

	case RepListSpec:
		if err := r.RequireAligned(); err != nil {
			return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		raw, err := r.ReadBits(8)
		if err != nil {
			return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		return 0, false, c.walkElements(r, s, t.Elem, int(raw), path, opts)

	case OctetsFxSpec:
		if err := r.RequireAligned(); err != nil {
			return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
		}
		for {
			raw, err := r.ReadBits(8)
			if err != nil {
				return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
			}
			if raw&0x80 == 0 {
				break
			}
		}
		return 0, false, nil

	case OptionalSpec:
		present, err := c.optionalPresent(r, s, path)
		if err != nil {
			return 0, false, err
		}
		if !present {
			return 0, false, nil
		}
		synthetic := Field{Name: f.Name, Type: t.Elem, Constraint: f.Constraint}
		return c.walkField(r, s, &synthetic, path, opts)

	default:
		trace.Assert(false, "walkField: unhandled TypeSpec %T", f.Type)
		return 0, false, nil
	}
}

func (c *Codec) walkElements(r *bitio.Reader, s *scope, elem TypeSpec, n int, path string, opts walkOptions) error {
	if n < 0 {
		return newErr(ErrValidation, path, r.BytePos, fmt.Sprintf("negative element count %d", n))
	}
	for i := 0; i < n; i++ {
		elemPath := f2idx(path, i)
		synthetic := Field{Name: elemPath, Type: elem}
		if _, _, err := c.walkField(r, s, &synthetic, elemPath, opts); err != nil {
			return err
		}
	}
	return nil
}

// walkBaseRaw reads bt's natural-width value, returning it as a signed
// int64 (the caller discards this for non-integer base types).
func (c *Codec) walkBaseRaw(r *bitio.Reader, bt BaseType, path string) (int64, error) {
	if err := r.RequireAligned(); err != nil {
		return 0, newErr(ErrValidation, path, r.BytePos, err.Error())
	}
	n := bt.Size()
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		raw, err := r.ReadBits(8)
		if err != nil {
			return 0, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		buf[i] = byte(raw)
	}
	u := readUintBytes(buf, c.opts.endianness)
	if bt.Signed() {
		return signExtend(u, bt.Bits()), nil
	}
	return int64(u), nil
}

func (c *Codec) walkLengthCount(r *bitio.Reader, f *Field, width int, path string, opts walkOptions) (int64, bool, error) {
	if err := r.RequireAligned(); err != nil {
		return 0, false, newErr(ErrValidation, path, r.BytePos, err.Error())
	}
	nbytes := widthBytes(width)
	buf := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		raw, err := r.ReadBits(8)
		if err != nil {
			return 0, false, newErr(ErrShortBuffer, path, r.BytePos, err.Error())
		}
		buf[i] = byte(raw)
	}
	v := int64(readUintBytes(buf, c.opts.endianness))
	if opts.validate {
		if err := checkConstraint(f, v, path, r.BytePos); err != nil {
			return 0, false, err
		}
	}
	return v, true, nil
}

// walkSkipZeroBytes advances n whole bytes, zeroing them in place when
// opts.zero is set.
func (c *Codec) walkSkipZeroBytes(r *bitio.Reader, n int, opts walkOptions) error {
	if err := r.RequireAligned(); err != nil {
		return newErr(ErrValidation, "", r.BytePos, err.Error())
	}
	if r.BytePos+n > len(r.Data) {
		return newErr(ErrShortBuffer, "", r.BytePos, fmt.Sprintf("short buffer skipping %d byte(s)", n))
	}
	if opts.zero {
		for i := 0; i < n; i++ {
			r.Data[r.BytePos+i] = 0
		}
	}
	return r.SkipBits(n * 8)
}

// walkSkipZeroBits advances n bits, zeroing them in place (preserving
// neighboring bits sharing a byte) when opts.zero is set.
func (c *Codec) walkSkipZeroBits(r *bitio.Reader, n int, opts walkOptions) error {
	if !opts.zero {
		return r.SkipBits(n)
	}
	remaining := n
	for remaining > 0 {
		if r.BytePos >= len(r.Data) {
			return newErr(ErrShortBuffer, "", r.BytePos, fmt.Sprintf("short buffer zeroing %d bit(s)", remaining))
		}
		bitOffset, byteIdx := r.BitOffset(), r.BytePos
		avail := 8 - int(bitOffset)
		take := remaining
		if take > avail {
			take = avail
		}
		mask := byte(1<<uint(take)-1) << bitOffset
		r.Data[byteIdx] &^= mask
		if err := r.SkipBits(take); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}
