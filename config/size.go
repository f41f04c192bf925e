package config

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var sizePair = regexp.MustCompile(`^(\d+)x(\d+)$`)

// ScreenSize is a screen_widths entry: a bare width (320) or a
// WIDTHxHEIGHT pair (1280x1024). A zero Height means the engine picks one.
type ScreenSize struct {
	Width  int
	Height int
}

// ParseScreenSize parses "320" or "1280x1024".
func ParseScreenSize(s string) (ScreenSize, error) {
	if w, err := strconv.Atoi(s); err == nil {
		return ScreenSize{Width: w}, nil
	}
	m := sizePair.FindStringSubmatch(s)
	if m == nil {
		return ScreenSize{}, fmt.Errorf("screen width %q must be WIDTH or WIDTHxHEIGHT", s)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return ScreenSize{Width: w, Height: h}, nil
}

// String renders the size the way it is written in the config. It is also
// the prefix of every shot file name.
func (s ScreenSize) String() string {
	if s.Height > 0 {
		return fmt.Sprintf("%dx%d", s.Width, s.Height)
	}
	return strconv.Itoa(s.Width)
}

func (s *ScreenSize) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: screen width must be a scalar", node.Line)
	}
	parsed, err := ParseScreenSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

func (s ScreenSize) MarshalYAML() (interface{}, error) {
	if s.Height > 0 {
		return stringNode(s.String()), nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(s.Width)}, nil
}
