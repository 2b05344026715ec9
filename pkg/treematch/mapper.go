// Package treematch composes the decompressed arenas, the subtree matcher
// and the ambiguity resolver into tree-pair mapping, with a process-wide
// cache of finished mappings.
package treematch

import (
	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
	"github.com/Sumatoshi-tech/treematch/pkg/matchers"
)

// Mapper owns the two arenas of a tree pair and the mapping between them.
// It is not safe for concurrent use.
type Mapper struct {
	Src      *decompressed.LazyPostOrder
	Dst      *decompressed.LazyPostOrder
	Mappings *mappings.VecStore
}

// NewMapper decompresses the roots of both trees and allocates an empty
// mapping sized for them. Both trees must live in store.
func NewMapper(store hast.Resolver, src, dst hast.NodeID) (*Mapper, error) {
	srcArena, err := decompressed.Decompress(store, src)
	if err != nil {
		return nil, err
	}

	dstArena, err := decompressed.Decompress(store, dst)
	if err != nil {
		return nil, err
	}

	return &Mapper{
		Src:      srcArena,
		Dst:      dstArena,
		Mappings: mappings.NewVecStore(srcArena.Len(), dstArena.Len()),
	}, nil
}

// newMapperWith wraps an existing mapping, typically a cached one, in
// fresh arenas.
func newMapperWith(store hast.Resolver, src, dst hast.NodeID, m *mappings.VecStore) (*Mapper, error) {
	mapper, err := NewMapper(store, src, dst)
	if err != nil {
		return nil, err
	}

	mapper.Mappings = m

	return mapper, nil
}

// MatchSubtrees runs candidate generation followed by ambiguity resolution
// and records the result in m.Mappings.
func (m *Mapper) MatchSubtrees(opts ...matchers.Option) (matchers.ResolveStats, error) {
	mm, err := matchers.ComputeMultiMapping(m.Src, m.Dst, opts...)
	if err != nil {
		return matchers.ResolveStats{}, err
	}

	return matchers.FilterMappings(m.Src, m.Dst, mm, m.Mappings)
}

// NearestMappedAncestor returns the closest src index at or above s that has
// a counterpart. It reports false when no ancestor is mapped.
func (m *Mapper) NearestMappedAncestor(s uint32) (uint32, bool, error) {
	_, err := m.Src.DecompressTo(s)
	if err != nil {
		return 0, false, err
	}

	for cur, ok := s, true; ok; cur, ok = m.Src.Parent(cur) {
		if m.Mappings.IsMappedSrc(cur) {
			return cur, true, nil
		}
	}

	return 0, false, nil
}

// Summary describes the size of a mapping relative to its trees.
type Summary struct {
	SrcNodes int
	DstNodes int
	Mapped   int
}

// Summary reports node counts for the current mapping.
func (m *Mapper) Summary() Summary {
	return Summary{
		SrcNodes: m.Src.Len(),
		DstNodes: m.Dst.Len(),
		Mapped:   m.Mappings.Len(),
	}
}

// SrcCoverage is the fraction of src nodes with a counterpart.
func (s Summary) SrcCoverage() float64 {
	if s.SrcNodes == 0 {
		return 0
	}

	return float64(s.Mapped) / float64(s.SrcNodes)
}

// DstCoverage is the fraction of dst nodes with a counterpart.
func (s Summary) DstCoverage() float64 {
	if s.DstNodes == 0 {
		return 0
	}

	return float64(s.Mapped) / float64(s.DstNodes)
}

// MatchSubtrees maps the subtree rooted at src onto the one rooted at dst.
// The returned Mapper keeps both arenas for further traversal.
func MatchSubtrees(store hast.Resolver, src, dst hast.NodeID, opts ...matchers.Option) (*Mapper, error) {
	m, err := NewMapper(store, src, dst)
	if err != nil {
		return nil, err
	}

	_, err = m.MatchSubtrees(opts...)
	if err != nil {
		return nil, err
	}

	return m, nil
}
