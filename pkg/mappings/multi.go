package mappings

import (
	"iter"
	"slices"

	"github.com/Sumatoshi-tech/treematch/pkg/safeconv"
)

// MultiVecStore is a many-to-many relation between src and dst indices.
// Each side keeps its counterparts in link order without duplicates.
type MultiVecStore struct {
	src2dsts [][]uint32
	dst2srcs [][]uint32
	pairs    int
}

// NewMultiVecStore creates a store sized for srcLen sources and dstLen
// destinations.
func NewMultiVecStore(srcLen, dstLen int) *MultiVecStore {
	m := &MultiVecStore{}
	m.Topit(srcLen, dstLen)

	return m
}

// Topit pre-allocates room for srcLen sources and dstLen destinations.
func (m *MultiVecStore) Topit(srcLen, dstLen int) {
	if srcLen > len(m.src2dsts) {
		m.src2dsts = append(m.src2dsts, make([][]uint32, srcLen-len(m.src2dsts))...)
	}

	if dstLen > len(m.dst2srcs) {
		m.dst2srcs = append(m.dst2srcs, make([][]uint32, dstLen-len(m.dst2srcs))...)
	}
}

// Len returns the number of distinct pairs.
func (m *MultiVecStore) Len() int {
	return m.pairs
}

// Link adds (s, d). Linking an existing pair is a no-op.
func (m *MultiVecStore) Link(s, d uint32) {
	m.Topit(int(s)+1, int(d)+1)

	if slices.Contains(m.src2dsts[s], d) {
		return
	}

	m.src2dsts[s] = append(m.src2dsts[s], d)
	m.dst2srcs[d] = append(m.dst2srcs[d], s)
	m.pairs++
}

// Cut removes (s, d) if present.
func (m *MultiVecStore) Cut(s, d uint32) {
	if !m.Has(s, d) {
		return
	}

	m.src2dsts[s] = slices.DeleteFunc(m.src2dsts[s], func(x uint32) bool { return x == d })
	m.dst2srcs[d] = slices.DeleteFunc(m.dst2srcs[d], func(x uint32) bool { return x == s })
	m.pairs--
}

// Has reports whether s and d are linked.
func (m *MultiVecStore) Has(s, d uint32) bool {
	return slices.Contains(m.GetDsts(s), d)
}

// GetDsts returns the candidates of s. The slice must not be modified.
func (m *MultiVecStore) GetDsts(s uint32) []uint32 {
	if int(s) >= len(m.src2dsts) {
		return nil
	}

	return m.src2dsts[s]
}

// GetSrcs returns the candidates of d. The slice must not be modified.
func (m *MultiVecStore) GetSrcs(d uint32) []uint32 {
	if int(d) >= len(m.dst2srcs) {
		return nil
	}

	return m.dst2srcs[d]
}

// IsMappedSrc reports whether s has at least one candidate.
func (m *MultiVecStore) IsMappedSrc(s uint32) bool {
	return len(m.GetDsts(s)) > 0
}

// IsMappedDst reports whether d has at least one candidate.
func (m *MultiVecStore) IsMappedDst(d uint32) bool {
	return len(m.GetSrcs(d)) > 0
}

// IsSrcUnique reports whether s has exactly one candidate.
func (m *MultiVecStore) IsSrcUnique(s uint32) bool {
	return len(m.GetDsts(s)) == 1
}

// IsDstUnique reports whether d has exactly one candidate.
func (m *MultiVecStore) IsDstUnique(d uint32) bool {
	return len(m.GetSrcs(d)) == 1
}

// MappedSrcs yields src indices with candidates in ascending order.
func (m *MultiVecStore) MappedSrcs() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for s, ds := range m.src2dsts {
			if len(ds) == 0 {
				continue
			}

			if !yield(safeconv.MustIntToUint32(s)) {
				return
			}
		}
	}
}
