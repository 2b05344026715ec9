// Package sitterload builds hast trees from source code through tree-sitter
// grammars.
package sitterload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	forest "github.com/alexaandru/go-sitter-forest"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/treematch/pkg/hast"
)

// Sentinel errors.
var (
	ErrLanguageNotAvailable = errors.New("tree-sitter language not available")
	ErrUnknownLanguage      = errors.New("cannot detect language")
	ErrBinaryInput          = errors.New("binary input")
	errNoRootNode           = errors.New("no root node")
)

// grammarNames maps enry language names to forest grammar names where the
// lowercased name does not match.
var grammarNames = map[string]string{
	"c++":         "cpp",
	"c#":          "c_sharp",
	"shell":       "bash",
	"objective-c": "objc",
	"emacs lisp":  "elisp",
	"common lisp": "commonlisp",
	"f#":          "fsharp",
	"vim script":  "vim",
	"protobuf":    "proto",
}

// DetectLanguage returns the grammar name for a file, using its name and,
// when the name is ambiguous, its content.
func DetectLanguage(filename string, content []byte) (string, error) {
	lang := enry.GetLanguage(filepath.Base(filename), content)
	if lang == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownLanguage, filename)
	}

	return GrammarName(lang), nil
}

// GrammarName converts an enry language name to a forest grammar name.
func GrammarName(lang string) string {
	key := strings.ToLower(lang)
	if name, ok := grammarNames[key]; ok {
		return name
	}

	return strings.ReplaceAll(key, " ", "_")
}

// Loader parses source files into a shared [hast.Store]. It is safe for
// concurrent use.
type Loader struct {
	store *hast.Store

	mu      sync.Mutex
	parsers map[string]*sync.Pool
}

// NewLoader creates a loader inserting into store.
func NewLoader(store *hast.Store) *Loader {
	return &Loader{store: store, parsers: make(map[string]*sync.Pool)}
}

// LoadFile reads path, detects its language unless lang is set, and stores
// its syntax tree.
func (l *Loader) LoadFile(ctx context.Context, path, lang string) (hast.NodeID, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	if enry.IsBinary(content) {
		return 0, fmt.Errorf("%w: %s", ErrBinaryInput, path)
	}

	if lang == "" {
		lang, err = DetectLanguage(path, content)
		if err != nil {
			return 0, err
		}
	}

	return l.Load(ctx, lang, content)
}

// Load parses content with the named grammar and stores its syntax tree.
// Named nodes become hast nodes typed by their grammar kind; named nodes
// without named children become leaves labeled with their source text.
func (l *Loader) Load(ctx context.Context, lang string, content []byte) (hast.NodeID, error) {
	pool, err := l.pool(lang)
	if err != nil {
		return 0, err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return 0, fmt.Errorf("%w: parser pool for %s", ErrLanguageNotAvailable, lang)
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return 0, fmt.Errorf("parse %s source: %w", lang, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return 0, errNoRootNode
	}

	return l.insert(root, content), nil
}

func (l *Loader) pool(lang string) (*sync.Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.parsers[lang]; ok {
		return p, nil
	}

	language := getLanguage(lang)
	if language == nil {
		return nil, fmt.Errorf("%w: %s", ErrLanguageNotAvailable, lang)
	}

	p := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(language)

			return tsParser
		},
	}
	l.parsers[lang] = p

	return p, nil
}

// getLanguage recovers from grammars that panic on lookup.
func getLanguage(name string) (lang *sitter.Language) {
	defer func() {
		if recover() != nil {
			lang = nil
		}
	}()

	return forest.GetLanguage(name)
}

func (l *Loader) insert(n sitter.Node, source []byte) hast.NodeID {
	count := n.NamedChildCount()
	if count == 0 {
		return l.store.Leaf(n.Type(), string(source[n.StartByte():n.EndByte()]))
	}

	children := make([]hast.NodeID, 0, count)

	for idx := range count {
		child := n.NamedChild(idx)
		if child.IsNull() {
			continue
		}

		children = append(children, l.insert(child, source))
	}

	return l.store.Tree(n.Type(), children...)
}
