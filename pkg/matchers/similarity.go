package matchers

import (
	"math"

	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
)

// Dice returns 2*common/(srcLen+dstLen), or 0 when both ranges are empty.
func Dice(common, srcLen, dstLen int) float64 {
	if srcLen+dstLen == 0 {
		return 0
	}

	return 2 * float64(common) / float64(srcLen+dstLen)
}

// LCSLen returns the length of the longest common subsequence of a and b
// under eq.
func LCSLen[A, B any](a []A, b []B, eq func(A, B) bool) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := range a {
		for j := range b {
			switch {
			case eq(a[i], b[j]):
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}

		prev, cur = cur, prev
	}

	return prev[len(b)]
}

// siblingSimilarity is the Dice coefficient of committed pairs between the
// descendant ranges of the parents of s and d.
func siblingSimilarity(src, dst *decompressed.LazyPostOrder, mono *mappings.VecStore, s, d uint32) float64 {
	ps, ok := src.Parent(s)
	if !ok {
		return 0
	}

	pd, ok := dst.Parent(d)
	if !ok {
		return 0
	}

	srcLo, srcHi := src.DescendantsRange(ps)
	dstLo, dstHi := dst.DescendantsRange(pd)

	common := 0

	for x := srcLo; x < srcHi; x++ {
		if y, ok := mono.GetDst(x); ok && y >= dstLo && y < dstHi {
			common++
		}
	}

	return Dice(common, int(srcHi-srcLo), int(dstHi-dstLo))
}

// parentSimilarity compares the ancestor chains of s and d by type and
// label through their longest common subsequence.
func parentSimilarity(src, dst *decompressed.LazyPostOrder, s, d uint32) (float64, error) {
	srcChain, err := ancestorNodes(src, s)
	if err != nil {
		return 0, err
	}

	dstChain, err := ancestorNodes(dst, d)
	if err != nil {
		return 0, err
	}

	common := LCSLen(srcChain, dstChain, func(a, b *hast.Node) bool {
		return a.Type == b.Type && a.SameLabel(b)
	})

	return Dice(common, len(srcChain), len(dstChain)), nil
}

func ancestorNodes(arena *decompressed.LazyPostOrder, x uint32) ([]*hast.Node, error) {
	parents := arena.Parents(x)
	out := make([]*hast.Node, 0, len(parents))

	for _, p := range parents {
		n, err := arena.Node(p)
		if err != nil {
			return nil, err
		}

		out = append(out, n)
	}

	return out, nil
}

// positionDistance is the Euclidean distance between the relative sibling
// positions of s, d and their ancestors, compared level by level.
func positionDistance(src, dst *decompressed.LazyPostOrder, s, d uint32) (float64, error) {
	srcPos, err := relativePositions(src, s)
	if err != nil {
		return 0, err
	}

	dstPos, err := relativePositions(dst, d)
	if err != nil {
		return 0, err
	}

	sum := 0.0

	for i := range min(len(srcPos), len(dstPos)) {
		delta := srcPos[i] - dstPos[i]
		sum += delta * delta
	}

	return math.Sqrt(sum), nil
}

// relativePositions returns position/sibling-count for x and each of its
// ancestors that has a parent, nearest first.
func relativePositions(arena *decompressed.LazyPostOrder, x uint32) ([]float64, error) {
	var out []float64

	for cur := x; ; {
		p, ok := arena.Parent(cur)
		if !ok {
			return out, nil
		}

		pos, _ := arena.PositionInParent(cur)

		siblings, err := arena.Children(p)
		if err != nil {
			return nil, err
		}

		out = append(out, float64(pos)/float64(len(siblings)))
		cur = p
	}
}
