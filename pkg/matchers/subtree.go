package matchers

import (
	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
)

// ComputeMultiMapping finds every maximal pair of isomorphic subtrees of
// height at least the configured minimum. A subtree may be paired with
// several counterparts; see [FilterMappings] for resolution.
//
// Both arenas must decompress trees of the same store, since node ids are
// only comparable within one store.
func ComputeMultiMapping(
	src, dst *decompressed.LazyPostOrder, opts ...Option,
) (*mappings.MultiVecStore, error) {
	if src.Store() != dst.Store() {
		return nil, ErrStoreMismatch
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	mm := mappings.NewMultiVecStore(src.Len(), dst.Len())

	srcTrees, err := newPriorityTreeList(src, o.minHeight)
	if err != nil {
		return nil, err
	}

	dstTrees, err := newPriorityTreeList(dst, o.minHeight)
	if err != nil {
		return nil, err
	}

	for {
		hs, hd := srcTrees.peekHeight(), dstTrees.peekHeight()
		if hs == -1 || hd == -1 {
			return mm, nil
		}

		if hs != hd {
			taller := srcTrees
			if hd > hs {
				taller = dstTrees
			}

			err = taller.open()
			if err != nil {
				return nil, err
			}

			continue
		}

		err = matchBuckets(src, dst, srcTrees, dstTrees, mm)
		if err != nil {
			return nil, err
		}
	}
}

// matchBuckets pairs the current same-height buckets of both lists and
// opens every tree left without a counterpart.
func matchBuckets(
	src, dst *decompressed.LazyPostOrder,
	srcTrees, dstTrees *priorityTreeList,
	mm *mappings.MultiVecStore,
) error {
	ls, ld := srcTrees.pop(), dstTrees.pop()
	matchedSrc := make([]bool, len(ls))
	matchedDst := make([]bool, len(ld))

	for i, s := range ls {
		for j, d := range ld {
			if Isomorphic(src.Store(), src.Original(s), dst.Original(d)) {
				mm.Link(s, d)
				matchedSrc[i] = true
				matchedDst[j] = true
			}
		}
	}

	for i, s := range ls {
		if matchedSrc[i] {
			continue
		}

		err := srcTrees.openTree(s)
		if err != nil {
			return err
		}
	}

	for j, d := range ld {
		if matchedDst[j] {
			continue
		}

		err := dstTrees.openTree(d)
		if err != nil {
			return err
		}
	}

	return nil
}
