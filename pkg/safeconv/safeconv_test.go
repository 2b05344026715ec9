package safeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	for _, v := range []int{0, 42, int(MaxUint32)} {
		assert.Equal(t, uint32(v), MustIntToUint32(v)) //nolint:gosec // test values are in range.
	}

	for _, v := range []int{-1, int(MaxUint32) + 1} {
		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(v)
		}, v)
	}
}
