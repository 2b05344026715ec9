// Package matchers implements height-bucketed subtree isomorphism matching
// over decompressed arenas and the resolution of ambiguous candidates into
// a partial bijection.
package matchers

import "errors"

// DefaultMinHeight is the lowest subtree height considered by
// [ComputeMultiMapping]. Leaves have height 1.
const DefaultMinHeight = 1

var (
	// ErrInvalidMinHeight is returned for a minimum height below 1.
	ErrInvalidMinHeight = errors.New("min height must be at least 1")
	// ErrStoreMismatch is returned when the two arenas read from different
	// stores.
	ErrStoreMismatch = errors.New("arenas must share one store")
)

type options struct {
	minHeight int
}

// Option configures subtree matching.
type Option func(*options)

// WithMinHeight skips subtrees shorter than h.
func WithMinHeight(h int) Option {
	return func(o *options) {
		o.minHeight = h
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{minHeight: DefaultMinHeight}

	for _, opt := range opts {
		opt(&o)
	}

	if o.minHeight < 1 {
		return o, ErrInvalidMinHeight
	}

	return o, nil
}
