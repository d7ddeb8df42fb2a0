package wireproto

import "math"

// codecOptions holds the tunables shared by decode, encode, and walk
// operations.
type codecOptions struct {
	endianness Endianness
	maxDepth   int
}

const defaultMaxDepth = 1000

func defaultOptions() codecOptions {
	return codecOptions{endianness: BigEndian, maxDepth: defaultMaxDepth}
}

// Option configures a [Codec]. Options are closures over an internal
// options struct, matching the teacher idiom; [NewCodec] applies them once
// and every later decode/encode/walk call reads the result.
type Option struct{ apply func(*codecOptions) }

// WithEndianness sets the byte order used for multi-byte integer, float,
// and length/count reads and writes. The default is [BigEndian].
func WithEndianness(e Endianness) Option {
	return Option{func(o *codecOptions) { o.endianness = e }}
}

// WithMaxDepth sets the maximum struct-nesting recursion depth. A resolved
// protocol with cyclic StructRefs (or adversarial input exploiting deep
// nesting) would otherwise recurse without bound; exceeding this limit
// fails with [ErrValidation]. Setting a large value re-opens that DoS
// vector.
func WithMaxDepth(depth int) Option {
	return Option{func(o *codecOptions) { o.maxDepth = min(depth, math.MaxInt32) }}
}

func applyOptions(opts []Option) codecOptions {
	o := defaultOptions()
	for _, opt := range opts {
		if opt.apply != nil {
			opt.apply(&o)
		}
	}
	return o
}
