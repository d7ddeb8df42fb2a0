// Package wireproto is a declarative binary-protocol toolkit for
// message-oriented wire formats governed by variable-length presence
// bitmaps (ASTERIX-style FSPEC, ASN.1-style presence bits), nested compound
// structures, bit-packed integers, length/count prefixes, and spec-defined
// value constraints.
//
// A caller builds or parses a [Protocol] description (the surface grammar
// that produces it is out of scope for this package), resolves it with
// [Resolve] into a [ResolvedProtocol], and then drives three binary passes
// over raw byte buffers using a [Codec]:
//
//   - Decode: [Codec.DecodeMessage] turns bytes into a tagged [Value] tree.
//   - Encode: [Codec.EncodeMessage] turns a [Value] tree into bytes.
//   - Walk: [Codec.MessageExtent], [Codec.ValidateMessage],
//     [Codec.ZeroPaddingAndReserved], and
//     [Codec.ValidateAndZeroMessage] compute a record's byte extent and
//     validate/zero it in place without building a value tree.
//
// The frame layer ([Codec.DecodeFrame]) iterates records of a single
// message type out of a buffer, partitioning them into decoded and
// rejected records.
//
// # Support status
//
// The following are deliberately out of scope for this package, treated as
// external collaborators: the grammar/parser that produces a [Protocol]
// from source text, a linter's presentation layer (a source-text style
// linter lives in the module's internal/lint package), CLI
// front-ends, GUI viewers, PCAP framing and UDP reassembly, and
// pretty-printing with physical units.
package wireproto
