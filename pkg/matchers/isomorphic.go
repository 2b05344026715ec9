package matchers

import "github.com/Sumatoshi-tech/treematch/pkg/hast"

// Isomorphic reports whether the subtrees at a and b have the same type,
// label and pairwise isomorphic ordered children.
//
// Differing hashes reject immediately. Equal hashes still recurse since
// digests may collide.
func Isomorphic(store hast.Resolver, a, b hast.NodeID) bool {
	if a == b {
		return true
	}

	na, ok := store.Resolve(a)
	if !ok {
		return false
	}

	nb, ok := store.Resolve(b)
	if !ok {
		return false
	}

	if na.LabelHash != nb.LabelHash || na.StructHash != nb.StructHash {
		return false
	}

	return isomorphicNodes(store, na, nb)
}

func isomorphicRec(store hast.Resolver, a, b hast.NodeID) bool {
	if a == b {
		return true
	}

	na, ok := store.Resolve(a)
	if !ok {
		return false
	}

	nb, ok := store.Resolve(b)
	if !ok {
		return false
	}

	return isomorphicNodes(store, na, nb)
}

func isomorphicNodes(store hast.Resolver, na, nb *hast.Node) bool {
	if na.Type != nb.Type || !na.SameLabel(nb) {
		return false
	}

	if len(na.Children) != len(nb.Children) {
		return false
	}

	for i := range na.Children {
		if !isomorphicRec(store, na.Children[i], nb.Children[i]) {
			return false
		}
	}

	return true
}
