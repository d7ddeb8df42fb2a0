package wireproto

// Interval is an inclusive integer range [Min, Max].
type Interval struct{ Min, Max int64 }

// Constraint restricts the legal values of a field: either a value must
// fall within one of a set of inclusive intervals, or it must equal one of
// an enumerated set of literal values. Exactly one of Intervals or Enum
// should be set.
type Constraint struct {
	Intervals []Interval
	Enum      []int64

	// Saturating is precomputed at resolve time (§9 glossary): true when
	// Intervals is a single interval covering (at least) the full
	// representable range of the field's BaseType, in which case
	// validation is a provable no-op and may be skipped.
	Saturating bool
}

// Check reports whether x satisfies c.
func (c *Constraint) Check(x int64) bool {
	if c == nil {
		return true
	}
	if c.Saturating {
		return true
	}
	if len(c.Enum) > 0 {
		for _, v := range c.Enum {
			if v == x {
				return true
			}
		}
		return false
	}
	for _, iv := range c.Intervals {
		if x >= iv.Min && x <= iv.Max {
			return true
		}
	}
	return len(c.Intervals) == 0
}

// fullRange returns the inclusive [min,max] representable by bt, used to
// detect a saturating constraint at resolve time.
func fullRange(bt BaseType) (min, max int64) {
	switch bt {
	case U8:
		return 0, 0xff
	case U16:
		return 0, 0xffff
	case U32:
		return 0, 0xffffffff
	case U64:
		return 0, 1<<63 - 1 // clamp: int64 can't hold the full u64 range
	case I8:
		return -1 << 7, 1<<7 - 1
	case I16:
		return -1 << 15, 1<<15 - 1
	case I32:
		return -1 << 31, 1<<31 - 1
	case I64:
		return -1 << 63, 1<<63 - 1
	case Bool:
		return 0, 1
	default:
		return 0, 0
	}
}

// computeSaturating sets c.Saturating if c is a single interval spanning
// bt's full representable range.
func computeSaturating(c *Constraint, bt BaseType) {
	if c == nil || len(c.Enum) > 0 || len(c.Intervals) != 1 {
		return
	}
	lo, hi := fullRange(bt)
	iv := c.Intervals[0]
	c.Saturating = iv.Min <= lo && iv.Max >= hi
}
