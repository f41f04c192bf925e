package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Parse decodes a capture config without resolving imports or applying
// defaults. The parsed document is kept so Marshal can write back the keys
// of the input as they were written.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	var cfg Config
	if len(doc.Content) == 0 {
		return &cfg, nil
	}
	if err := doc.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc.Content[0].Kind == yaml.MappingNode {
		cfg.doc = &doc
	}
	return &cfg, nil
}

// Marshal encodes cfg as YAML with two-space indentation. For a config
// returned by Parse, keys keep their order, their comments and their
// original text unless the field behind them has since changed; keys the
// input lacked are written only when their field is set.
func Marshal(cfg *Config) ([]byte, error) {
	var fresh yaml.Node
	if err := fresh.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	out := &fresh
	if cfg.doc != nil {
		out = overlay(cfg.doc, &fresh)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// overlay returns a copy of doc whose top-level values are replaced by
// those of fresh wherever the two no longer encode the same config.
func overlay(doc, fresh *yaml.Node) *yaml.Node {
	src := doc.Content[0]
	merged := *src
	merged.Content = nil
	seen := map[string]bool{}

	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		seen[key.Value] = true

		current := lookup(fresh, key.Value)
		if !sameNode(encodeKey(key, value), current) {
			if current == nil {
				continue
			}
			value = current
		}
		merged.Content = append(merged.Content, key, value)
	}
	for i := 0; i+1 < len(fresh.Content); i += 2 {
		if !seen[fresh.Content[i].Value] {
			merged.Content = append(merged.Content, fresh.Content[i], fresh.Content[i+1])
		}
	}

	out := *doc
	out.Content = []*yaml.Node{&merged}
	return &out
}

// encodeKey decodes a lone key into an empty Config and returns how that
// Config encodes the key, or nil when it is left out.
func encodeKey(key, value *yaml.Node) *yaml.Node {
	var single Config
	pair := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{key, value}}
	if err := pair.Decode(&single); err != nil {
		return nil
	}
	var enc yaml.Node
	if err := enc.Encode(&single); err != nil {
		return nil
	}
	return lookup(&enc, key.Value)
}

func sameNode(a, b *yaml.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.ShortTag() != b.ShortTag() || a.Value != b.Value || len(a.Content) != len(b.Content) {
		return false
	}
	for i := range a.Content {
		if !sameNode(a.Content[i], b.Content[i]) {
			return false
		}
	}
	return true
}

// Load reads the config at path, merges the file named by its imports key
// underneath it (keys in path win), and applies defaults.
func Load(path string) (*Config, error) {
	root, err := loadNode(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.source = path
	cfg.ApplyDefaults()
	return &cfg, nil
}

func loadNode(path string, visiting map[string]bool) (*yaml.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if visiting[abs] {
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(doc.Content) > 0 {
		root = resolveAlias(doc.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level must be a mapping", path)
	}

	imports := lookup(root, "imports")
	if imports == nil || imports.Value == "" || imports.ShortTag() == "!!null" {
		return root, nil
	}
	importPath := imports.Value
	if !filepath.IsAbs(importPath) {
		importPath = filepath.Join(filepath.Dir(path), importPath)
	}
	imported, err := loadNode(importPath, visiting)
	if err != nil {
		return nil, fmt.Errorf("imports %s: %w", imports.Value, err)
	}
	return mergeMappings(imported, root), nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolveAlias(mapping.Content[i+1])
		}
	}
	return nil
}

// mergeMappings returns over's pairs followed by the pairs of base whose
// keys over does not define.
func mergeMappings(base, over *yaml.Node) *yaml.Node {
	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	merged.Content = append(merged.Content, over.Content...)
	for i := 0; i+1 < len(base.Content); i += 2 {
		if lookup(over, base.Content[i].Value) == nil {
			merged.Content = append(merged.Content, base.Content[i], base.Content[i+1])
		}
	}
	return merged
}
