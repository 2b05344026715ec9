// Package hast provides an in-process, content-addressed syntax tree store.
//
// Structurally identical subtrees are stored once and referenced by a
// [NodeID] derived from their content. Records are immutable once inserted,
// so a [Store] can be shared by any number of concurrent readers.
package hast

import (
	"errors"
	"strconv"
)

// ErrUnknownNode is returned when an id cannot be resolved by the store.
var ErrUnknownNode = errors.New("unknown node id")

// NodeID is the content-derived identifier of a deduplicated node.
type NodeID uint64

// String renders the id in hexadecimal.
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

// Node is an immutable AST record with precomputed statistics.
//
// Size counts the nodes of the subtree (a leaf has size 1). Height counts the
// nodes on the longest root-to-leaf path (a leaf has height 1).
// StructHash covers types and arity only; LabelHash additionally covers labels.
type Node struct {
	Type       string
	Label      string
	Children   []NodeID
	Size       int
	Height     int
	StructHash uint64
	LabelHash  uint64
	HasLabel   bool
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	return len(n.Children)
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// SameLabel reports whether both nodes carry the same label flag and content.
func (n *Node) SameLabel(other *Node) bool {
	if n.HasLabel != other.HasLabel {
		return false
	}

	return !n.HasLabel || n.Label == other.Label
}

// Resolver resolves node ids to their records.
type Resolver interface {
	Resolve(id NodeID) (*Node, bool)
}
