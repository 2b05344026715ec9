package decompressed

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/treematch/pkg/hast"
)

// Sentinel errors for arena operations.
var (
	// ErrIndexOutOfRange is returned for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("decompressed index out of range")
	// ErrNotDecompressed is returned when an operation needs a slot that has
	// not been materialized yet.
	ErrNotDecompressed = errors.New("node not decompressed")
	// ErrStructuralInconsistency is returned when the arena layout disagrees
	// with the statistics stored in the AST.
	ErrStructuralInconsistency = errors.New("structural inconsistency")
)

// InconsistencyError carries the context of a failed arena invariant.
type InconsistencyError struct {
	Err   error
	Op    string
	Node  hast.NodeID
	Index uint32
	Want  uint32
	Got   uint32
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: %v at index %d (node %s): want %d, got %d",
		e.Op, e.Err, e.Index, e.Node, e.Want, e.Got)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

func inconsistent(op string, idx uint32, node hast.NodeID, want, got uint32) error {
	return &InconsistencyError{
		Err:   ErrStructuralInconsistency,
		Op:    op,
		Index: idx,
		Node:  node,
		Want:  want,
		Got:   got,
	}
}
