// Package mappings holds correspondences between the decompressed indices of
// a source and a destination tree.
//
// [VecStore] is a partial bijection. [MultiVecStore] is the many-to-many
// relation produced while generating candidates.
package mappings

import (
	"iter"
	"slices"

	"github.com/Sumatoshi-tech/treematch/pkg/safeconv"
)

// VecStore is a mutable partial bijection between src and dst indices.
// Slots hold the counterpart index plus one; zero means unmapped.
type VecStore struct {
	src2dst []uint32
	dst2src []uint32
	pairs   int
}

// NewVecStore creates a store able to hold srcLen sources and dstLen
// destinations without growing.
func NewVecStore(srcLen, dstLen int) *VecStore {
	m := &VecStore{}
	m.Topit(srcLen, dstLen)

	return m
}

// Topit pre-allocates room for srcLen sources and dstLen destinations.
// It never shrinks the store.
func (m *VecStore) Topit(srcLen, dstLen int) {
	if srcLen > len(m.src2dst) {
		m.src2dst = append(m.src2dst, make([]uint32, srcLen-len(m.src2dst))...)
	}

	if dstLen > len(m.dst2src) {
		m.dst2src = append(m.dst2src, make([]uint32, dstLen-len(m.dst2src))...)
	}
}

// Capacity returns the number of addressable src and dst slots.
func (m *VecStore) Capacity() (src, dst int) {
	return len(m.src2dst), len(m.dst2src)
}

// Len returns the number of mapped pairs.
func (m *VecStore) Len() int {
	return m.pairs
}

// Link maps s to d, dropping any earlier counterpart of either.
func (m *VecStore) Link(s, d uint32) {
	m.Topit(int(s)+1, int(d)+1)

	if old, ok := m.GetDst(s); ok {
		if old == d {
			return
		}

		m.unlink(s, old)
	}

	if old, ok := m.GetSrc(d); ok {
		m.unlink(old, d)
	}

	m.src2dst[s] = d + 1
	m.dst2src[d] = s + 1
	m.pairs++
}

// LinkIfBothUnmapped links s and d only when neither is mapped yet and
// reports whether it did.
func (m *VecStore) LinkIfBothUnmapped(s, d uint32) bool {
	if m.IsMappedSrc(s) || m.IsMappedDst(d) {
		return false
	}

	m.Link(s, d)

	return true
}

// Cut removes the pair (s, d) if present.
func (m *VecStore) Cut(s, d uint32) {
	if m.Has(s, d) {
		m.unlink(s, d)
	}
}

func (m *VecStore) unlink(s, d uint32) {
	m.src2dst[s] = 0
	m.dst2src[d] = 0
	m.pairs--
}

// GetDst returns the counterpart of s.
func (m *VecStore) GetDst(s uint32) (uint32, bool) {
	if int(s) >= len(m.src2dst) || m.src2dst[s] == 0 {
		return 0, false
	}

	return m.src2dst[s] - 1, true
}

// GetSrc returns the counterpart of d.
func (m *VecStore) GetSrc(d uint32) (uint32, bool) {
	if int(d) >= len(m.dst2src) || m.dst2src[d] == 0 {
		return 0, false
	}

	return m.dst2src[d] - 1, true
}

// Has reports whether s is mapped to d.
func (m *VecStore) Has(s, d uint32) bool {
	got, ok := m.GetDst(s)

	return ok && got == d
}

// IsMappedSrc reports whether s has a counterpart.
func (m *VecStore) IsMappedSrc(s uint32) bool {
	_, ok := m.GetDst(s)

	return ok
}

// IsMappedDst reports whether d has a counterpart.
func (m *VecStore) IsMappedDst(d uint32) bool {
	_, ok := m.GetSrc(d)

	return ok
}

// Iter yields mapped pairs in ascending src order.
func (m *VecStore) Iter() iter.Seq2[uint32, uint32] {
	return func(yield func(uint32, uint32) bool) {
		for s, d := range m.src2dst {
			if d == 0 {
				continue
			}

			if !yield(safeconv.MustIntToUint32(s), d-1) {
				return
			}
		}
	}
}

// MappedSrcs yields mapped src indices in ascending order.
func (m *VecStore) MappedSrcs() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for s := range m.Iter() {
			if !yield(s) {
				return
			}
		}
	}
}

// AllMappedDsts lists mapped dst indices in ascending order.
func (m *VecStore) AllMappedDsts() []uint32 {
	out := make([]uint32, 0, m.pairs)

	for d, s := range m.dst2src {
		if s != 0 {
			out = append(out, safeconv.MustIntToUint32(d))
		}
	}

	return out
}

// Clone returns an independent copy.
func (m *VecStore) Clone() *VecStore {
	return &VecStore{
		src2dst: slices.Clone(m.src2dst),
		dst2src: slices.Clone(m.dst2src),
		pairs:   m.pairs,
	}
}
