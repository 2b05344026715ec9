// Package safeconv converts between arena index and length types, panicking
// where an overflow would be a programming error.
package safeconv

import "math"

// MaxUint32 is the largest arena index.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts a length or offset to an arena index, panicking
// when v is out of range.
func MustIntToUint32(v int) uint32 {
	if v < 0 || v > int(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}
