package hast

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrEmptyTree is returned when a YAML document does not describe a node.
var ErrEmptyTree = errors.New("tree document has no type")

// yamlNode is the on-disk shape of a tree fixture:
//
//	type: call
//	children:
//	  - type: identifier
//	    label: f
type yamlNode struct {
	Label    *string    `yaml:"label"`
	Type     string     `yaml:"type"`
	Children []yamlNode `yaml:"children"`
}

// LoadYAML decodes a single tree document from r into the store and returns
// the id of its root.
func (s *Store) LoadYAML(r io.Reader) (NodeID, error) {
	var doc yamlNode

	err := yaml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("decode tree: %w", err)
	}

	return s.insertYAML(&doc, "/")
}

// ParseYAML is [Store.LoadYAML] over an in-memory document.
func (s *Store) ParseYAML(data []byte) (NodeID, error) {
	var doc yamlNode

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return 0, fmt.Errorf("decode tree: %w", err)
	}

	return s.insertYAML(&doc, "/")
}

func (s *Store) insertYAML(doc *yamlNode, path string) (NodeID, error) {
	if doc.Type == "" {
		return 0, fmt.Errorf("%w at %s", ErrEmptyTree, path)
	}

	children := make([]NodeID, 0, len(doc.Children))

	for i := range doc.Children {
		id, err := s.insertYAML(&doc.Children[i], fmt.Sprintf("%s%d/", path, i))
		if err != nil {
			return 0, err
		}

		children = append(children, id)
	}

	label := ""
	if doc.Label != nil {
		label = *doc.Label
	}

	return s.Insert(doc.Type, label, doc.Label != nil, children)
}
