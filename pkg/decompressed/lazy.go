// Package decompressed provides a lazily materialized post-order view of a
// content-addressed syntax tree.
//
// The AST shares identical subtrees, so a node id alone does not identify a
// position. A [LazyPostOrder] allocates one slot per logical position,
// numbered in post-order: the root is Len()-1 and every descendant of x has
// an index in [LLD(x), x). Slots are filled on demand by
// [LazyPostOrder.DecompressChildren] and [LazyPostOrder.DecompressTo].
package decompressed

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/safeconv"
)

// ErrNotDescendant is returned by [LazyPostOrder.Path] when the walk reaches
// the root without meeting the requested ancestor.
var ErrNotDescendant = errors.New("not a descendant")

// unset marks a slot whose parent has not decompressed it yet.
const unset = math.MaxUint32

// LazyPostOrder is a post-order arena over one AST subtree.
// It is not safe for concurrent use.
type LazyPostOrder struct {
	store    hast.Resolver
	original []hast.NodeID
	parent   []uint32
	llds     []uint32
}

// Decompress creates an arena for the subtree rooted at root. Only the root
// slot is materialized.
func Decompress(store hast.Resolver, root hast.NodeID) (*LazyPostOrder, error) {
	n, ok := store.Resolve(root)
	if !ok {
		return nil, fmt.Errorf("decompress: %w: %s", hast.ErrUnknownNode, root)
	}

	if n.Size <= 0 || n.Size >= unset {
		return nil, inconsistent("decompress", 0, root, 1, uint32(max(n.Size, 0))) //nolint:gosec // clamped.
	}

	size := n.Size

	t := &LazyPostOrder{
		store:    store,
		original: make([]hast.NodeID, size),
		parent:   make([]uint32, size),
		llds:     make([]uint32, size),
	}

	for i := range t.parent {
		t.parent[i] = unset
	}

	r := t.Root()
	t.original[r] = root
	t.parent[r] = r
	t.llds[r] = 0

	return t, nil
}

// Len returns the number of slots, which is the size of the root subtree.
func (t *LazyPostOrder) Len() int {
	return len(t.parent)
}

// Root returns the root index, Len()-1.
func (t *LazyPostOrder) Root() uint32 {
	return safeconv.MustIntToUint32(len(t.parent) - 1)
}

// Store returns the resolver the arena reads from.
func (t *LazyPostOrder) Store() hast.Resolver {
	return t.store
}

// Starter returns the index matching starts from.
func (t *LazyPostOrder) Starter() uint32 {
	return t.Root()
}

// IsDecompressed reports whether slot i has been materialized.
func (t *LazyPostOrder) IsDecompressed(i uint32) bool {
	return int(i) < len(t.parent) && t.parent[i] != unset
}

// Original returns the AST id at slot i. i must be decompressed.
func (t *LazyPostOrder) Original(i uint32) hast.NodeID {
	return t.original[i]
}

// LLD returns the leftmost descendant (first descendant) of slot i.
// i must be decompressed.
func (t *LazyPostOrder) LLD(i uint32) uint32 {
	return t.llds[i]
}

// Size returns the number of nodes in the subtree at i.
func (t *LazyPostOrder) Size(i uint32) int {
	return int(i-t.llds[i]) + 1
}

// DescendantsCount returns the number of strict descendants of i.
func (t *LazyPostOrder) DescendantsCount(i uint32) int {
	return int(i - t.llds[i])
}

// DescendantsRange returns the half-open range [lo, hi) of descendants of i.
func (t *LazyPostOrder) DescendantsRange(i uint32) (lo, hi uint32) {
	return t.llds[i], i
}

// Descendants lists the strict descendants of i in post-order.
func (t *LazyPostOrder) Descendants(i uint32) []uint32 {
	lo, hi := t.DescendantsRange(i)
	out := make([]uint32, 0, hi-lo)

	for d := lo; d < hi; d++ {
		out = append(out, d)
	}

	return out
}

// IsDescendant reports whether desc lies strictly inside the subtree of of.
func (t *LazyPostOrder) IsDescendant(desc, of uint32) bool {
	return desc < of && t.llds[of] <= desc
}

// Parent returns the parent of i. It reports false for the root and for
// slots that are out of range or not decompressed.
func (t *LazyPostOrder) Parent(i uint32) (uint32, bool) {
	if !t.IsDecompressed(i) || i == t.Root() {
		return 0, false
	}

	return t.parent[i], true
}

// Parents returns the ancestors of i, nearest first, ending with the root.
func (t *LazyPostOrder) Parents(i uint32) []uint32 {
	var out []uint32

	for p, ok := t.Parent(i); ok; p, ok = t.Parent(p) {
		out = append(out, p)
	}

	return out
}

// Node resolves the AST record at slot i.
func (t *LazyPostOrder) Node(i uint32) (*hast.Node, error) {
	err := t.checkIndex(i)
	if err != nil {
		return nil, err
	}

	if t.parent[i] == unset {
		return nil, fmt.Errorf("%w: index %d", ErrNotDecompressed, i)
	}

	n, ok := t.store.Resolve(t.original[i])
	if !ok {
		return nil, fmt.Errorf("%w: %s at index %d", hast.ErrUnknownNode, t.original[i], i)
	}

	return n, nil
}

// DecompressChildren materializes the children of x and returns their
// indices in order. Leaves yield an empty slice.
//
// Children are laid out right to left directly below x: the rightmost child
// occupies x-1 and each child to its left ends where the previous one's
// leftmost descendant begins.
func (t *LazyPostOrder) DecompressChildren(x uint32) ([]uint32, error) {
	n, err := t.Node(x)
	if err != nil {
		return nil, err
	}

	if n.IsLeaf() {
		return nil, nil
	}

	lld := t.llds[x]

	want := uint32(n.Size) //nolint:gosec // bounded by the root size.
	if got := x - lld + 1; got != want {
		return nil, inconsistent("decompress children", x, t.original[x], want, got)
	}

	out := make([]uint32, len(n.Children))
	c := x - 1

	for i := len(n.Children) - 1; ; i-- {
		childID := n.Children[i]

		child, ok := t.store.Resolve(childID)
		if !ok {
			return nil, fmt.Errorf("%w: child %s of index %d", hast.ErrUnknownNode, childID, x)
		}

		s := uint32(child.Size) //nolint:gosec // checked against the free range below.
		if s == 0 || s > c-lld+1 {
			return nil, inconsistent("decompress children", c, childID, c-lld+1, s)
		}

		out[i] = c
		t.original[c] = childID
		t.parent[c] = x
		t.llds[c] = c + 1 - s

		if i == 0 {
			break
		}

		if t.llds[c] == lld {
			return nil, inconsistent("decompress children", c, childID, lld+1, t.llds[c])
		}

		c = t.llds[c] - 1
	}

	if t.llds[out[0]] != lld {
		return nil, inconsistent("decompress children", x, t.original[x], lld, t.llds[out[0]])
	}

	return out, nil
}

// Children returns the children of x without materializing anything.
// The children of x must already be decompressed.
func (t *LazyPostOrder) Children(x uint32) ([]uint32, error) {
	n, err := t.Node(x)
	if err != nil {
		return nil, err
	}

	if n.IsLeaf() {
		return nil, nil
	}

	if x == 0 || t.parent[x-1] != x {
		return nil, fmt.Errorf("%w: children of index %d", ErrNotDecompressed, x)
	}

	out := make([]uint32, len(n.Children))
	c := x - 1

	for i := len(out) - 1; ; i-- {
		out[i] = c

		if i == 0 {
			break
		}

		c = t.llds[c] - 1
	}

	if t.llds[c] != t.llds[x] {
		return nil, inconsistent("children", x, t.original[x], t.llds[x], t.llds[c])
	}

	return out, nil
}

// DecompressTo materializes the path from the nearest decompressed ancestor
// down to target and returns target.
func (t *LazyPostOrder) DecompressTo(target uint32) (uint32, error) {
	err := t.checkIndex(target)
	if err != nil {
		return 0, err
	}

	// The root is always decompressed, so the scan terminates.
	p := target
	for t.parent[p] == unset {
		p++
	}

	for target < t.llds[p] {
		p = t.parent[p]
	}

	for p > target {
		cs, err := t.DecompressChildren(p)
		if err != nil {
			return 0, err
		}

		next := p

		for j := len(cs) - 1; j >= 0; j-- {
			if cs[j] < target {
				break
			}

			next = cs[j]
		}

		if next == p {
			return 0, inconsistent("decompress to", p, t.original[p], target, p)
		}

		p = next
	}

	return target, nil
}

// DecompressDescendants materializes the whole subtree of x.
func (t *LazyPostOrder) DecompressDescendants(x uint32) error {
	stack := []uint32{x}

	for len(stack) > 0 {
		last := len(stack) - 1
		cur := stack[last]
		stack = stack[:last]

		cs, err := t.DecompressChildren(cur)
		if err != nil {
			return err
		}

		stack = append(stack, cs...)
	}

	return nil
}

// PositionInParent returns the offset of c among its siblings.
func (t *LazyPostOrder) PositionInParent(c uint32) (int, bool) {
	p, ok := t.Parent(c)
	if !ok {
		return 0, false
	}

	first := t.llds[p]
	pos := 0

	for t.llds[c] != first {
		c = t.llds[c] - 1
		pos++
	}

	return pos, true
}

// LeftSibling returns the sibling immediately left of c.
func (t *LazyPostOrder) LeftSibling(c uint32) (uint32, bool) {
	p, ok := t.Parent(c)
	if !ok {
		return 0, false
	}

	lld := t.llds[c]
	if lld == t.llds[p] {
		return 0, false
	}

	return lld - 1, true
}

// Path returns the child offsets leading from parent down to descendant.
func (t *LazyPostOrder) Path(parent, descendant uint32) ([]int, error) {
	var path []int

	for cur := descendant; cur != parent; {
		p, ok := t.Parent(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %d of %d", ErrNotDescendant, descendant, parent)
		}

		pos, _ := t.PositionInParent(cur)
		path = append(path, pos)
		cur = p
	}

	slices.Reverse(path)

	return path, nil
}

// ChildDecompressed follows child offsets from x, materializing every step,
// and returns the reached index.
func (t *LazyPostOrder) ChildDecompressed(x uint32, path []int) (uint32, error) {
	cur := x

	for depth, offset := range path {
		cs, err := t.DecompressChildren(cur)
		if err != nil {
			return 0, err
		}

		if offset < 0 || offset >= len(cs) {
			return 0, fmt.Errorf("%w: child %d at depth %d of index %d has %d children",
				ErrIndexOutOfRange, offset, depth, cur, len(cs))
		}

		cur = cs[offset]
	}

	return cur, nil
}

func (t *LazyPostOrder) checkIndex(i uint32) error {
	if int(i) >= len(t.parent) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(t.parent))
	}

	return nil
}
