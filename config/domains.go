package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Domain is a labelled base URL, e.g. current: https://www.example.com.
type Domain struct {
	Label string
	URL   string
}

// Domains keeps the file order of the domains mapping. The first entry is
// the reference side of every comparison.
type Domains []Domain

// Get returns the domain with the given label.
func (d Domains) Get(label string) (Domain, bool) {
	for _, dom := range d {
		if dom.Label == label {
			return dom, true
		}
	}
	return Domain{}, false
}

func (d *Domains) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: domains must map a label to a URL", node.Line)
	}
	out := make(Domains, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolveAlias(node.Content[i+1])
		var u string
		if err := value.Decode(&u); err != nil {
			return fmt.Errorf("domain %q: %w", key.Value, err)
		}
		out = append(out, Domain{Label: key.Value, URL: u})
	}
	*d = out
	return nil
}

func (d Domains) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, dom := range d {
		node.Content = append(node.Content, stringNode(dom.Label), stringNode(dom.URL))
	}
	return node, nil
}

// PathEntry is a labelled capture path. The long form adds a CSS selector
// to crop to and a script to run before the capture.
type PathEntry struct {
	Label         string
	Path          string
	Selector      string
	BeforeCapture string

	long bool
}

// Paths keeps the file order of the paths mapping.
type Paths []PathEntry

type pathSpec struct {
	Path          string `yaml:"path"`
	Selector      string `yaml:"selector,omitempty"`
	BeforeCapture string `yaml:"before_capture,omitempty"`
}

func (p *Paths) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: paths must map a label to a path", node.Line)
	}
	out := make(Paths, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolveAlias(node.Content[i+1])
		entry := PathEntry{Label: key.Value}
		switch value.Kind {
		case yaml.ScalarNode:
			entry.Path = value.Value
		case yaml.MappingNode:
			var spec pathSpec
			if err := value.Decode(&spec); err != nil {
				return fmt.Errorf("path %q: %w", key.Value, err)
			}
			entry.Path = spec.Path
			entry.Selector = spec.Selector
			entry.BeforeCapture = spec.BeforeCapture
			entry.long = true
		default:
			return fmt.Errorf("line %d: path %q must be a string or a mapping", value.Line, key.Value)
		}
		out = append(out, entry)
	}
	*p = out
	return nil
}

func (p Paths) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, entry := range p {
		if !entry.long && entry.Selector == "" && entry.BeforeCapture == "" {
			node.Content = append(node.Content, stringNode(entry.Label), stringNode(entry.Path))
			continue
		}
		var value yaml.Node
		if err := value.Encode(pathSpec{
			Path:          entry.Path,
			Selector:      entry.Selector,
			BeforeCapture: entry.BeforeCapture,
		}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, stringNode(entry.Label), &value)
	}
	return node, nil
}

func stringNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
