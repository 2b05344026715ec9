package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/treematch/pkg/hast"
)

// loadTree stores the tree in path. YAML files are read as tree documents;
// anything else is parsed as source code.
func (s *session) loadTree(ctx context.Context, path, lang string) (hast.NodeID, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		id, err := s.store.LoadYAML(f)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", path, err)
		}

		return id, nil
	default:
		return s.loader.LoadFile(ctx, path, lang)
	}
}
