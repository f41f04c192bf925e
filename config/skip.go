package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// RegexpTag is the YAML tag marking a spider_skips entry as a regex literal.
const RegexpTag = "!ruby/regexp"

var regexpTags = map[string]bool{
	RegexpTag: true,
	"!regexp": true,
}

// SkipPattern is a spider_skips entry, matched against absolute URLs.
// Plain strings match as a substring; tagged literals such as
// `!ruby/regexp /\.pdf$/i` match as regular expressions.
type SkipPattern struct {
	Value string
	Flags string
	Tag   string

	re  *regexp.Regexp
	err error
}

// NewPlainSkip returns a pattern matching paths that contain s.
func NewPlainSkip(s string) SkipPattern {
	return SkipPattern{Value: s}
}

// NewRegexpSkip returns a regex pattern. flags may contain i, m and x.
func NewRegexpSkip(pattern, flags string) (SkipPattern, error) {
	p := SkipPattern{Value: pattern, Flags: flags, Tag: RegexpTag}
	p.re, p.err = compileLiteral(pattern, flags)
	return p, p.err
}

// IsRegexp reports whether the entry was written as a regex literal.
func (p SkipPattern) IsRegexp() bool {
	return p.Tag != ""
}

// String renders the entry the way it appears in the file.
func (p SkipPattern) String() string {
	if p.IsRegexp() {
		return "/" + p.Value + "/" + p.Flags
	}
	return p.Value
}

// Equal compares the written form of two patterns.
func (p SkipPattern) Equal(o SkipPattern) bool {
	return p.Value == o.Value && p.Flags == o.Flags && p.Tag == o.Tag
}

// Match reports whether rawURL should be skipped.
func (p SkipPattern) Match(rawURL string) bool {
	if !p.IsRegexp() {
		return p.Value != "" && strings.Contains(rawURL, p.Value)
	}
	if p.re == nil {
		return false
	}
	return p.re.MatchString(rawURL)
}

func (p *SkipPattern) compile() error {
	if !p.IsRegexp() || p.re != nil {
		return nil
	}
	if p.err == nil {
		p.re, p.err = compileLiteral(p.Value, p.Flags)
	}
	if p.err != nil {
		return fmt.Errorf("spider_skips %s: %w", p.String(), p.err)
	}
	return nil
}

func (p *SkipPattern) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: spider_skips entries must be strings or regex literals", node.Line)
	}
	if !regexpTags[node.Tag] {
		*p = NewPlainSkip(node.Value)
		return nil
	}
	body := node.Value
	end := strings.LastIndex(body, "/")
	if !strings.HasPrefix(body, "/") || end < 1 {
		return fmt.Errorf("line %d: regex literal %q must look like /pattern/flags", node.Line, body)
	}
	*p = SkipPattern{Value: body[1:end], Flags: body[end+1:], Tag: node.Tag}
	p.re, p.err = compileLiteral(p.Value, p.Flags)
	return nil
}

func (p SkipPattern) MarshalYAML() (interface{}, error) {
	if p.IsRegexp() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: p.Tag, Value: p.String()}, nil
	}
	return stringNode(p.Value), nil
}

// Skips is the spider_skips list.
type Skips []SkipPattern

// Match reports whether any entry matches rawURL.
func (s Skips) Match(rawURL string) bool {
	for _, p := range s {
		if p.Match(rawURL) {
			return true
		}
	}
	return false
}

// compileLiteral translates a regex literal to Go's RE2 dialect.
func compileLiteral(pattern, flags string) (*regexp.Regexp, error) {
	var prefix string
	for _, f := range flags {
		switch f {
		case 'i':
			prefix += "i"
		case 'm':
			prefix += "s"
		case 'x':
			pattern = stripExtended(pattern)
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}
	pattern = strings.ReplaceAll(pattern, `\h`, `[0-9a-fA-F]`)
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// stripExtended drops unescaped whitespace and # comments, outside
// character classes.
func stripExtended(pattern string) string {
	var b strings.Builder
	inClass, escaped, comment := false, false, false
	for _, r := range pattern {
		switch {
		case comment:
			if r == '\n' {
				comment = false
			}
			continue
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '[':
			inClass = true
		case r == ']':
			inClass = false
		case !inClass && r == '#':
			comment = true
			continue
		case !inClass && unicode.IsSpace(r):
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
