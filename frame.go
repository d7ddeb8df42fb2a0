package wireproto

// ByteRange is a record's location within a frame buffer, relative to the
// start of the frame (after any transport header).
type ByteRange struct {
	Start int
	Len   int
}

// DecodedRecord is one successfully decoded record from a frame (§4.4).
type DecodedRecord struct {
	Name   string
	Values map[string]Value
	Range  ByteRange
}

// RejectedRecord is one record a frame iteration could not decode or
// validate, together with the reason and the byte range it occupied so a
// caller can skip, log, or excise it.
type RejectedRecord struct {
	Name   string
	Range  ByteRange
	Reason error
}

// DecodeFrame iterates records of message name out of data, skipping a
// leading transportLen-byte header verbatim (pass 0 if there is none).
// A structural error (decoding stopped before the end of the record, so
// the consumed byte count is indeterminate) or an erroring zero-extent
// result aborts iteration rather than guess how far to skip; a validation
// error on a fully decoded record demotes that record to rejected and
// iteration continues past its reported extent (§4.4, §7).
func (c *Codec) DecodeFrame(data []byte, name string, transportLen int) (decoded []DecodedRecord, rejected []RejectedRecord, err error) {
	if transportLen > len(data) {
		return nil, nil, newErr(ErrShortBuffer, name, 0, "transport header longer than buffer")
	}
	body := data[transportLen:]
	pos := 0
	for pos < len(body) {
		consumed, values, decErr, structural := c.decodeMessageWithPhase(name, body[pos:])
		if consumed == 0 {
			if decErr != nil {
				return decoded, rejected, decErr
			}
			break
		}
		if decErr != nil && structural {
			// The extent itself is untrustworthy: decoding stopped
			// mid-record rather than completing with a constraint
			// failure, so there is no safe number of bytes to skip.
			return decoded, rejected, decErr
		}
		rng := ByteRange{Start: transportLen + pos, Len: consumed}
		if decErr != nil {
			rejected = append(rejected, RejectedRecord{Name: name, Range: rng, Reason: decErr})
		} else {
			decoded = append(decoded, DecodedRecord{Name: name, Values: values, Range: rng})
		}
		pos += consumed
	}
	return decoded, rejected, nil
}

// EncodeFrame is DecodeFrame's symmetric re-encoder: it emits a fresh
// buffer holding only the accepted records (in order), optionally
// prefixed by a re-encoded transport header padded with zero bytes or
// truncated to headerLen (§4.4 "A symmetric re-encoder"). Pass a nil
// transportHeader and headerLen 0 to omit the header entirely.
func (c *Codec) EncodeFrame(name string, records []map[string]Value, transportHeader []byte, headerLen int) ([]byte, error) {
	out := make([]byte, 0, headerLen+len(records)*16)
	if headerLen > 0 {
		hdr := make([]byte, headerLen)
		copy(hdr, transportHeader) // excess bytes truncated; a short header is zero-padded
		out = append(out, hdr...)
	}
	for _, values := range records {
		rec, err := c.EncodeMessage(name, values)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

// RemoveMessageInPlace excises the length-byte record starting at start
// from buf by shifting every subsequent byte left by length, and returns
// the new logical buffer length. buf's capacity (and every byte at or
// past the returned length) is left untouched; callers re-slice to
// buf[:newLen] (§4.3 "Removal").
func RemoveMessageInPlace(buf []byte, start, length int) int {
	tail := start + length
	n := copy(buf[start:], buf[tail:])
	return start + n
}

// RewriteLengthField overwrites the width-byte integer at buf[offset:]
// with value, in e's byte order, keeping an enclosing transport or frame
// length prefix coherent after [RemoveMessageInPlace] (§4.3 "Removal").
func RewriteLengthField(buf []byte, offset, width int, value uint64, e Endianness) {
	writeUintBytes(buf[offset:offset+width], value, e)
}
