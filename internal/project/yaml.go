package project

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"refsync/internal/logging"
)

// ignoredRepoKeys are repository settings that belong to the build rather
// than to the checkout. They are accepted and ignored.
var ignoredRepoKeys = map[string]bool{
	"name":            true,
	"type":            true,
	"layers":          true,
	"patches":         true,
	"signed":          true,
	"allowed_signers": true,
}

// parseYAML walks the document node by node so repositories keep their
// declaration order.
func parseYAML(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, fmt.Errorf("project file is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}

	f := &File{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "header":
			var header struct {
				Version int `yaml:"version"`
			}
			if err := value.Decode(&header); err != nil {
				return nil, fmt.Errorf("line %d: invalid header: %w", value.Line, err)
			}
			f.Version = header.Version
		case "defaults":
			var defaults struct {
				Repos Defaults `yaml:"repos"`
			}
			if err := value.Decode(&defaults); err != nil {
				return nil, fmt.Errorf("line %d: invalid defaults: %w", value.Line, err)
			}
			f.Defaults = defaults.Repos
		case "repos":
			repos, err := parseYAMLRepos(value)
			if err != nil {
				return nil, err
			}
			f.Repos = repos
		default:
			logging.Debug("Ignoring project key", "key", key.Value)
		}
	}
	return f, nil
}

func parseYAMLRepos(node *yaml.Node) ([]Entry, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: repos must be a mapping of name to repository", node.Line)
	}

	seen := make(map[string]int)
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if first, ok := seen[key.Value]; ok {
			return nil, fmt.Errorf("line %d: repository %q already declared on line %d", key.Line, key.Value, first)
		}
		seen[key.Value] = key.Line

		entry, err := parseYAMLRepo(key.Value, value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseYAMLRepo reads scalar values verbatim, so "3.0" stays "3.0" and a
// numeric-looking commit is not reformatted.
func parseYAMLRepo(name string, node *yaml.Node) (Entry, error) {
	entry := Entry{Name: name}
	if isNull(node) {
		return entry, nil
	}
	if node.Kind != yaml.MappingNode {
		return entry, fmt.Errorf("line %d: repository %q must be a mapping", node.Line, name)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var field *string
		switch key.Value {
		case "url":
			field = &entry.URL
		case "commit":
			field = &entry.Commit
		case "branch":
			field = &entry.Branch
		case "tag":
			field = &entry.Tag
		case "refspec":
			field = &entry.Refspec
		case "path":
			field = &entry.Path
		default:
			if ignoredRepoKeys[key.Value] {
				continue
			}
			return entry, fmt.Errorf("line %d: repository %q: unknown key %q", key.Line, name, key.Value)
		}

		switch {
		case isNull(value):
		case value.Kind == yaml.ScalarNode:
			*field = value.Value
		default:
			return entry, fmt.Errorf("line %d: repository %q: %s must be a string", value.Line, name, key.Value)
		}
	}
	return entry, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
