package hast

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Hash domain separators so that a label can never be confused with a type
// or a child hash inside the same digest.
const (
	tagType     byte = 0x01
	tagLabel    byte = 0x02
	tagNoLabel  byte = 0x03
	tagChild    byte = 0x04
	tagChildren byte = 0x05
)

// Store is a concurrency-safe content-addressed node store.
type Store struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	dedup int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[NodeID]*Node),
	}
}

// Resolve returns the record for id.
func (s *Store) Resolve(id NodeID) (*Node, bool) {
	s.mu.RLock()
	n, ok := s.nodes[id]
	s.mu.RUnlock()

	return n, ok
}

// Len returns the number of distinct records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nodes)
}

// Deduplicated returns how many inserts were answered by an existing record.
func (s *Store) Deduplicated() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dedup
}

// Insert stores a node with the given type, optional label and children and
// returns its id. Every child must already be present in the store.
func (s *Store) Insert(typ, label string, hasLabel bool, children []NodeID) (NodeID, error) {
	if !hasLabel {
		label = ""
	}

	rec := &Node{
		Type:     typ,
		Label:    label,
		HasLabel: hasLabel,
		Children: slices.Clone(children),
		Size:     1,
	}

	structDigest := xxhash.New()
	labelDigest := xxhash.New()
	idDigest := xxhash.New()

	writeTagged(structDigest, tagType, typ)
	writeTagged(labelDigest, tagType, typ)
	writeTagged(idDigest, tagType, typ)

	if hasLabel {
		writeTagged(labelDigest, tagLabel, label)
		writeTagged(idDigest, tagLabel, label)
	} else {
		_, _ = labelDigest.Write([]byte{tagNoLabel})
		_, _ = idDigest.Write([]byte{tagNoLabel})
	}

	writeCount(structDigest, len(children))
	writeCount(labelDigest, len(children))
	writeCount(idDigest, len(children))

	maxChildHeight := 0

	for _, childID := range children {
		child, ok := s.Resolve(childID)
		if !ok {
			return 0, fmt.Errorf("%w: child %s of %q", ErrUnknownNode, childID, typ)
		}

		rec.Size += child.Size
		maxChildHeight = max(maxChildHeight, child.Height)

		writeUint64(structDigest, tagChild, child.StructHash)
		writeUint64(labelDigest, tagChild, child.LabelHash)
		writeUint64(idDigest, tagChild, uint64(childID))
	}

	rec.Height = maxChildHeight + 1
	rec.StructHash = structDigest.Sum64()
	rec.LabelHash = labelDigest.Sum64()

	return s.intern(NodeID(idDigest.Sum64()), rec), nil
}

// Leaf inserts a labeled leaf.
func (s *Store) Leaf(typ, label string) NodeID {
	id, err := s.Insert(typ, label, true, nil)
	if err != nil {
		// Unreachable: leaves have no children to resolve.
		panic(err)
	}

	return id
}

// Tree inserts an unlabeled node over already stored children.
// It panics when a child is unknown; use [Store.Insert] for untrusted input.
func (s *Store) Tree(typ string, children ...NodeID) NodeID {
	id, err := s.Insert(typ, "", false, children)
	if err != nil {
		panic(err)
	}

	return id
}

// LabeledTree inserts a labeled node over already stored children.
// It panics when a child is unknown.
func (s *Store) LabeledTree(typ, label string, children ...NodeID) NodeID {
	id, err := s.Insert(typ, label, true, children)
	if err != nil {
		panic(err)
	}

	return id
}

// intern returns the id under which rec is stored, probing past hash
// collisions with records of different content.
func (s *Store) intern(id NodeID, rec *Node) NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		existing, ok := s.nodes[id]
		if !ok {
			s.nodes[id] = rec

			return id
		}

		if sameContent(existing, rec) {
			s.dedup++

			return id
		}

		id++
	}
}

func sameContent(a, b *Node) bool {
	return a.Type == b.Type &&
		a.HasLabel == b.HasLabel &&
		a.Label == b.Label &&
		slices.Equal(a.Children, b.Children)
}

func writeTagged(d *xxhash.Digest, tag byte, value string) {
	_, _ = d.Write([]byte{tag})
	writeCount(d, len(value))
	_, _ = d.WriteString(value)
}

func writeCount(d *xxhash.Digest, n int) {
	writeUint64(d, tagChildren, uint64(n)) //nolint:gosec // lengths are non-negative.
}

func writeUint64(d *xxhash.Digest, tag byte, v uint64) {
	var buf [9]byte

	buf[0] = tag
	binary.LittleEndian.PutUint64(buf[1:], v)
	_, _ = d.Write(buf[:])
}
