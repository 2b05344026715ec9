package matchers

import "github.com/Sumatoshi-tech/treematch/pkg/decompressed"

// priorityTreeList buckets open subtree roots of one arena by height.
// Bucket i holds trees of height maxHeight-i; current is the first
// non-empty bucket or -1.
type priorityTreeList struct {
	arena     *decompressed.LazyPostOrder
	trees     [][]uint32
	maxHeight int
	minHeight int
	current   int
}

func newPriorityTreeList(arena *decompressed.LazyPostOrder, minHeight int) (*priorityTreeList, error) {
	start := arena.Starter()

	n, err := arena.Node(start)
	if err != nil {
		return nil, err
	}

	l := &priorityTreeList{
		arena:     arena,
		maxHeight: n.Height,
		minHeight: minHeight,
		current:   -1,
	}

	if n.Height >= minHeight {
		l.trees = make([][]uint32, n.Height-minHeight+1)
	}

	l.addTree(start, n.Height)

	return l, nil
}

func (l *priorityTreeList) addTree(tree uint32, height int) {
	if height < l.minHeight {
		return
	}

	i := l.maxHeight - height
	l.trees[i] = append(l.trees[i], tree)

	if l.current == -1 || i < l.current {
		l.current = i
	}
}

// peekHeight returns the height of the current bucket or -1.
func (l *priorityTreeList) peekHeight() int {
	if l.current == -1 {
		return -1
	}

	return l.maxHeight - l.current
}

// pop removes and returns the current bucket.
func (l *priorityTreeList) pop() []uint32 {
	if l.current == -1 {
		return nil
	}

	out := l.trees[l.current]
	l.trees[l.current] = nil
	l.updateHeight()

	return out
}

// open pops the current bucket and re-buckets the children of every tree.
func (l *priorityTreeList) open() error {
	for _, tree := range l.pop() {
		err := l.openTree(tree)
		if err != nil {
			return err
		}
	}

	return nil
}

func (l *priorityTreeList) openTree(tree uint32) error {
	children, err := l.arena.DecompressChildren(tree)
	if err != nil {
		return err
	}

	for _, c := range children {
		n, err := l.arena.Node(c)
		if err != nil {
			return err
		}

		l.addTree(c, n.Height)
	}

	return nil
}

func (l *priorityTreeList) updateHeight() {
	for i := max(l.current, 0); i < len(l.trees); i++ {
		if len(l.trees[i]) > 0 {
			l.current = i

			return
		}
	}

	l.current = -1
}
