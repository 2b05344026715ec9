package matchers

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
	"github.com/Sumatoshi-tech/treematch/pkg/safeconv"
)

// ResolveStats summarizes one [FilterMappings] pass.
type ResolveStats struct {
	// Unique counts candidates committed because both sides had a single
	// counterpart.
	Unique int
	// Ambiguous is the length of the sorted ambiguous list.
	Ambiguous int
	// Committed counts ambiguous pairs accepted by the greedy pass.
	Committed int
}

type candidate struct {
	src, dst uint32

	srcParent, dstParent uint32
	hasSrcParent         bool
	hasDstParent         bool

	sibling  float64
	parent   float64
	position float64
}

// FilterMappings resolves the candidates in mm into mono. Unambiguous pairs
// are committed first. The rest are ranked by sibling similarity, parent
// chain similarity, relative position and index distance, then committed
// greedily so that no node is claimed twice.
func FilterMappings(
	src, dst *decompressed.LazyPostOrder,
	mm *mappings.MultiVecStore,
	mono *mappings.VecStore,
) (ResolveStats, error) {
	var stats ResolveStats

	mono.Topit(src.Len(), dst.Len())

	ignored := make([]bool, src.Len())

	var ambiguous []candidate

	for s := range mm.MappedSrcs() {
		dsts := mm.GetDsts(s)

		if mm.IsSrcUnique(s) && mm.IsDstUnique(dsts[0]) {
			err := AddMappingRecursively(src, dst, mono, s, dsts[0])
			if err != nil {
				return stats, err
			}

			stats.Unique++

			continue
		}

		if ignored[s] {
			continue
		}

		asrcs := mm.GetSrcs(dsts[0])
		for _, as := range asrcs {
			for _, ad := range dsts {
				ambiguous = append(ambiguous, candidate{src: as, dst: ad})
			}
		}

		for _, as := range asrcs {
			ignored[as] = true
		}
	}

	stats.Ambiguous = len(ambiguous)

	err := scoreCandidates(src, dst, mono, ambiguous)
	if err != nil {
		return stats, err
	}

	slices.SortStableFunc(ambiguous, compareCandidates)

	srcUsed := make([]bool, src.Len())
	dstUsed := make([]bool, dst.Len())

	for _, c := range ambiguous {
		if srcUsed[c.src] || dstUsed[c.dst] || mono.Has(c.src, c.dst) {
			continue
		}

		err = AddMappingRecursively(src, dst, mono, c.src, c.dst)
		if err != nil {
			return stats, err
		}

		stats.Committed++

		markSubtree(srcUsed, src, c.src)
		markSubtree(dstUsed, dst, c.dst)
	}

	return stats, nil
}

// AddMappingRecursively links s to d and zips their descendants by
// post-order offset. Both subtrees must have the same size.
func AddMappingRecursively(src, dst *decompressed.LazyPostOrder, mono *mappings.VecStore, s, d uint32) error {
	size := src.Size(s)
	if dstSize := dst.Size(d); dstSize != size {
		return fmt.Errorf("zip %d to %d: %w", s, d, &decompressed.InconsistencyError{
			Err:   decompressed.ErrStructuralInconsistency,
			Op:    "add mapping",
			Node:  dst.Original(d),
			Index: d,
			Want:  safeconv.MustIntToUint32(size),
			Got:   safeconv.MustIntToUint32(dstSize),
		})
	}

	mono.Link(s, d)

	srcLo, dstLo := src.LLD(s), dst.LLD(d)
	for i := range uint32(size - 1) {
		mono.Link(srcLo+i, dstLo+i)
	}

	return nil
}

func markSubtree(used []bool, arena *decompressed.LazyPostOrder, x uint32) {
	used[x] = true

	lo, hi := arena.DescendantsRange(x)
	for i := lo; i < hi; i++ {
		used[i] = true
	}
}

func scoreCandidates(src, dst *decompressed.LazyPostOrder, mono *mappings.VecStore, cs []candidate) error {
	for i := range cs {
		c := &cs[i]
		c.srcParent, c.hasSrcParent = src.Parent(c.src)
		c.dstParent, c.hasDstParent = dst.Parent(c.dst)
		c.sibling = siblingSimilarity(src, dst, mono, c.src, c.dst)

		var err error

		c.parent, err = parentSimilarity(src, dst, c.src, c.dst)
		if err != nil {
			return err
		}

		c.position, err = positionDistance(src, dst, c.src, c.dst)
		if err != nil {
			return err
		}
	}

	return nil
}

func sameParents(a, b *candidate) bool {
	return a.hasSrcParent == b.hasSrcParent && a.srcParent == b.srcParent &&
		a.hasDstParent == b.hasDstParent && a.dstParent == b.dstParent
}

func compareCandidates(a, b candidate) int {
	if !sameParents(&a, &b) {
		if c := cmp.Compare(b.sibling, a.sibling); c != 0 {
			return c
		}

		if c := cmp.Compare(b.parent, a.parent); c != 0 {
			return c
		}
	}

	if c := cmp.Compare(a.position, b.position); c != 0 {
		return c
	}

	return cmp.Compare(absDiff(a.src, a.dst), absDiff(b.src, b.dst))
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}

	return b - a
}
