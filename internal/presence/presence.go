// Package presence derives and exposes, for a single message or struct
// body, which optional fields a presence field (PresenceBits or
// BitmapPresence) governs (§4.1, §4.5 of the specification).
package presence

import "fmt"

// FXMarker is the reserved field name used in an explicit bit→name map to
// mark an extension-bit position rather than a data-carrying Optional.
const FXMarker = "FX"

// Candidate is one field considered while deriving a Mapping: the
// contiguous run of Optional fields following a presence field, including
// ones skipped because they are conditionally absent.
type Candidate struct {
	Name        string
	Conditional bool
}

// Mapping is the derived presence mapping for one container: the name of
// the presence field and the ordered list of optional field names it
// governs, indexed by logical (data-only) bit.
type Mapping struct {
	FieldName string
	Optionals []string
}

// FieldForBit returns the optional field name governed by the given
// logical bit index.
func (m *Mapping) FieldForBit(bit int) (string, bool) {
	if bit < 0 || bit >= len(m.Optionals) {
		return "", false
	}
	return m.Optionals[bit], true
}

// BitForField returns the logical bit index governing the named optional
// field.
func (m *Mapping) BitForField(name string) (int, bool) {
	for i, n := range m.Optionals {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Derive builds the Mapping for a presence field named fieldName governing
// the given contiguous run of optional candidates (conditionally-absent
// candidates are collected too; they simply never consume a bit at
// runtime, per §9 "conditional presence").
//
// If explicit is non-nil, it is a DSL-supplied physical bit index → field
// name table (FXMarker entries mark extension-bit positions at block
// boundaries for variable bitmaps). Derive strips FX entries, normalizes
// the remaining indices into the logical (data-only) domain, and verifies
// the result names the same fields as candidates, in the same order,
// failing otherwise. If explicit is nil, a default 0→first, 1→second, …
// mapping is synthesized from candidates.
func Derive(fieldName string, candidates []Candidate, explicit map[int]string, perBlock int) (*Mapping, error) {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	if explicit == nil {
		return &Mapping{FieldName: fieldName, Optionals: names}, nil
	}

	logical, err := normalizeExplicit(explicit, perBlock)
	if err != nil {
		return nil, err
	}

	if len(logical) != len(names) {
		return nil, fmt.Errorf("presence: explicit mapping for %q names %d field(s), but %d optional field(s) follow it",
			fieldName, len(logical), len(names))
	}
	for i, want := range names {
		if logical[i] != want {
			return nil, fmt.Errorf("presence: explicit mapping for %q expects %q at logical bit %d, got %q",
				fieldName, want, i, logical[i])
		}
	}

	return &Mapping{FieldName: fieldName, Optionals: names}, nil
}

// normalizeExplicit strips FX markers from an explicit physical bit→name
// table and returns the remaining names ordered by logical (data-only)
// index. It also validates that, when perBlock > 0, FX entries fall
// exactly on block boundaries (physical bit (perBlock+1)-1, 2*(perBlock+1)-1, …).
func normalizeExplicit(explicit map[int]string, perBlock int) ([]string, error) {
	maxBit := -1
	for bit := range explicit {
		if bit > maxBit {
			maxBit = bit
		}
	}

	logical := make([]string, 0, len(explicit))
	for bit := 0; bit <= maxBit; bit++ {
		name, ok := explicit[bit]
		if !ok {
			return nil, fmt.Errorf("presence: explicit mapping has a gap at physical bit %d", bit)
		}
		if name == FXMarker {
			if perBlock <= 0 {
				return nil, fmt.Errorf("presence: FX marker at physical bit %d but this presence field has no FX form", bit)
			}
			if (bit+1)%(perBlock+1) != 0 {
				return nil, fmt.Errorf("presence: FX marker at physical bit %d does not fall on a block boundary (block size %d)", bit, perBlock+1)
			}
			continue
		}
		if perBlock > 0 && (bit+1)%(perBlock+1) == 0 {
			return nil, fmt.Errorf("presence: physical bit %d is an FX position but names data field %q", bit, name)
		}
		logical = append(logical, name)
	}
	return logical, nil
}
