package wireproto

import "fmt"

// validateBody range/enum-checks every constrained field of a decoded body,
// recursing into StructRef, Optional, and sequence fields (§4.2
// "Validation"). offset is best-effort context for the error message; the
// authoritative consumed count is whatever [Codec.DecodeMessage] already
// computed from the bit cursor.
func (c *Codec) validateBody(data []byte, offset int, path string, fields []Field, values map[string]Value) error {
	for i := range fields {
		f := &fields[i]
		v, ok := values[f.Name]
		if !ok {
			continue // conditionally skipped field
		}
		fieldPath := path + "." + f.Name
		if err := c.validateField(data, offset, fieldPath, f, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) validateField(data []byte, offset int, path string, f *Field, v Value) error {
	switch t := f.Type.(type) {
	case OptionalSpec:
		if v.IsAbsent() {
			return nil
		}
		inner := Field{Name: f.Name, Type: t.Elem, Constraint: f.Constraint}
		return c.validateField(data, offset, path, &inner, v)

	case StructRefSpec:
		m, _ := v.AsMap()
		st, ok := c.proto.Struct(t.Name)
		if !ok {
			return nil
		}
		return c.validateBody(data, offset, path, st.Fields, m)

	case TypeRefSpec:
		inner, err := c.resolveTypeDef(t.Name)
		if err != nil {
			return nil
		}
		innerField := Field{Name: f.Name, Type: inner, Constraint: f.Constraint}
		return c.validateField(data, offset, path, &innerField, v)

	case ArraySpec:
		return c.validateElements(data, offset, path, t.Elem, v)
	case ListSpec:
		return c.validateElements(data, offset, path, t.Elem, v)
	case RepListSpec:
		return c.validateElements(data, offset, path, t.Elem, v)

	default:
		if f.Constraint == nil {
			return nil
		}
		x, ok := v.AsInt64()
		if !ok {
			return nil
		}
		if err := checkConstraint(f, x, path, offset); err != nil {
			return err
		}
		return nil
	}
}

func (c *Codec) validateElements(data []byte, offset int, path string, elem TypeSpec, v Value) error {
	elems, ok := v.AsList()
	if !ok {
		return nil
	}
	for i, e := range elems {
		elemField := Field{Name: f2idx(path, i), Type: elem}
		if err := c.validateField(data, offset, elemField.Name, &elemField, e); err != nil {
			return err
		}
	}
	return nil
}

func f2idx(path string, i int) string { return fmt.Sprintf("%s[%d]", path, i) }
