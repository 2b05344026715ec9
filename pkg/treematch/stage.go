package treematch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStage is returned by [ParseStage] for unsupported names.
var ErrUnknownStage = errors.New("unknown matching stage")

// Stage tags how far a cached mapping has been refined.
type Stage uint8

const (
	// StageSubtree is the output of subtree isomorphism matching and
	// ambiguity resolution.
	StageSubtree Stage = iota + 1
)

func (s Stage) String() string {
	switch s {
	case StageSubtree:
		return "subtree"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// ParseStage maps a stage name to its value.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "subtree":
		return StageSubtree, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
}
