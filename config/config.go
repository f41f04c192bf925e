// Package config models the capture configuration: which domains to shoot,
// which paths, at which screen sizes, and how strictly the shots are compared.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid wraps every validation failure returned by Validate.
	ErrInvalid = errors.New("invalid configuration")

	// ErrSingleDomain is returned when a comparison needs two domains but only one is configured.
	ErrSingleDomain = errors.New("at least two domains are required to compare")

	// ErrNoHistoryDir is returned by history workflows when history_dir is unset.
	ErrNoHistoryDir = errors.New("history_dir is required")

	// ErrImportCycle is returned when imports refer back to a file already being loaded.
	ErrImportCycle = errors.New("import cycle")
)

// Defaults applied by ApplyDefaults.
const (
	DefaultDirectory      = "shots"
	DefaultFuzz           = "20%"
	DefaultThumbWidth     = 200
	DefaultThumbHeight    = 200
	DefaultHighlightColor = "blue"
	DefaultSpiderFile     = "spider.txt"
	DefaultSpiderDays     = 10
	DefaultTemplate       = "basic_template"
)

// Mode controls ordering and filtering of the gallery.
type Mode string

const (
	ModeAlphanumeric Mode = "alphanumeric"
	ModeDiffsFirst   Mode = "diffs_first"
	ModeDiffsOnly    Mode = "diffs_only"
)

// IsValid reports whether m is a known gallery mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeAlphanumeric, ModeDiffsFirst, ModeDiffsOnly:
		return true
	}
	return false
}

// Gallery holds the gallery template settings.
type Gallery struct {
	Template    string `yaml:"template,omitempty"`
	ThumbWidth  int    `yaml:"thumb_width,omitempty"`
	ThumbHeight int    `yaml:"thumb_height,omitempty"`
}

// Config is a capture configuration file.
type Config struct {
	Browser          string         `yaml:"browser,omitempty"`
	Domains          Domains        `yaml:"domains,omitempty"`
	SpiderSkips      Skips          `yaml:"spider_skips,omitempty"`
	Imports          string         `yaml:"imports,omitempty"`
	Paths            Paths          `yaml:"paths,omitempty"`
	SpiderFile       string         `yaml:"spider_file,omitempty"`
	SpiderDays       []int          `yaml:"spider_days,omitempty"`
	ScreenWidths     []ScreenSize   `yaml:"screen_widths,omitempty"`
	Directory        string         `yaml:"directory,omitempty"`
	HistoryDir       string         `yaml:"history_dir,omitempty"`
	Fuzz             string         `yaml:"fuzz,omitempty"`
	Threshold        float64        `yaml:"threshold,omitempty"`
	Gallery          Gallery        `yaml:"gallery,omitempty"`
	Mode             Mode           `yaml:"mode,omitempty"`
	PhantomJSOptions string         `yaml:"phantomjs_options,omitempty"`
	NumThreads       int            `yaml:"num_threads,omitempty"`
	HighlightColor   string         `yaml:"highlight_color,omitempty"`
	ResizeOrReload   string         `yaml:"resize_or_reload,omitempty"`
	BeforeCapture    string         `yaml:"before_capture,omitempty"`
	Verbose          bool           `yaml:"verbose,omitempty"`

	// Extra keeps keys this struct does not model so they survive Marshal.
	Extra map[string]yaml.Node `yaml:",inline"`

	// source is the file the config was loaded from; imports resolve against it.
	source string

	// doc is the document Parse decoded, written back by Marshal.
	doc *yaml.Node
}

// Source returns the path the config was loaded from, or "" when parsed from bytes.
func (c *Config) Source() string {
	return c.source
}

// ApplyDefaults fills unset optional fields. It never overwrites values
// present in the file.
func (c *Config) ApplyDefaults() {
	if c.Directory == "" {
		c.Directory = DefaultDirectory
	}
	if c.Fuzz == "" {
		c.Fuzz = DefaultFuzz
	}
	if c.Mode == "" {
		c.Mode = ModeAlphanumeric
	}
	if c.Gallery.Template == "" {
		c.Gallery.Template = DefaultTemplate
	}
	if c.Gallery.ThumbWidth == 0 {
		c.Gallery.ThumbWidth = DefaultThumbWidth
	}
	if c.Gallery.ThumbHeight == 0 {
		c.Gallery.ThumbHeight = DefaultThumbHeight
	}
	if c.HighlightColor == "" {
		c.HighlightColor = DefaultHighlightColor
	}
	if c.SpiderFile == "" {
		c.SpiderFile = DefaultSpiderFile
	}
	if len(c.SpiderDays) == 0 {
		c.SpiderDays = []int{DefaultSpiderDays}
	}
}

// FuzzPercent parses Fuzz ("20%" or "20") into a number between 0 and 100.
func (c *Config) FuzzPercent() (float64, error) {
	raw := strings.TrimSpace(c.Fuzz)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("fuzz %q: %w", c.Fuzz, err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("fuzz %q: must be between 0%% and 100%%", c.Fuzz)
	}
	return v, nil
}

// BaseDomain returns the first configured domain. Shots from it are the
// reference side of every comparison.
func (c *Config) BaseDomain() (Domain, bool) {
	if len(c.Domains) == 0 {
		return Domain{}, false
	}
	return c.Domains[0], true
}

// CompareDomain returns the second configured domain.
func (c *Config) CompareDomain() (Domain, error) {
	if len(c.Domains) < 2 {
		return Domain{}, ErrSingleDomain
	}
	return c.Domains[1], nil
}

// DomainLabels returns the domain labels in file order.
func (c *Config) DomainLabels() []string {
	labels := make([]string, len(c.Domains))
	for i, d := range c.Domains {
		labels[i] = d.Label
	}
	return labels
}

// SpiderMaxAgeDays is the cache lifetime of the spider file.
func (c *Config) SpiderMaxAgeDays() int {
	if len(c.SpiderDays) == 0 {
		return DefaultSpiderDays
	}
	return c.SpiderDays[0]
}

// Validate checks the config and returns every problem found, joined and
// wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []error

	if strings.TrimSpace(c.Browser) == "" {
		problems = append(problems, errors.New("browser is required"))
	}

	if len(c.Domains) == 0 {
		problems = append(problems, errors.New("at least one domain is required"))
	}
	seen := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if seen[d.Label] {
			problems = append(problems, fmt.Errorf("domain %q is declared twice", d.Label))
		}
		seen[d.Label] = true
		u, err := url.Parse(d.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			problems = append(problems, fmt.Errorf("domain %q: %q is not an absolute http(s) URL", d.Label, d.URL))
		}
	}

	if len(c.ScreenWidths) == 0 {
		problems = append(problems, errors.New("at least one screen width is required"))
	}
	for _, s := range c.ScreenWidths {
		if s.Width <= 0 || s.Height < 0 {
			problems = append(problems, fmt.Errorf("screen width %q must be positive", s.String()))
		}
	}

	if _, err := c.FuzzPercent(); err != nil {
		problems = append(problems, err)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		problems = append(problems, fmt.Errorf("threshold %v must be between 0 and 100", c.Threshold))
	}
	if c.Mode != "" && !c.Mode.IsValid() {
		problems = append(problems, fmt.Errorf("mode %q must be one of %s, %s, %s", c.Mode, ModeAlphanumeric, ModeDiffsFirst, ModeDiffsOnly))
	}
	if c.Gallery.ThumbWidth < 0 || c.Gallery.ThumbHeight < 0 {
		problems = append(problems, errors.New("gallery thumbnail dimensions must be positive"))
	}
	if c.ResizeOrReload != "" && c.ResizeOrReload != "resize" && c.ResizeOrReload != "reload" {
		problems = append(problems, fmt.Errorf("resize_or_reload %q must be resize or reload", c.ResizeOrReload))
	}
	if c.NumThreads < 0 {
		problems = append(problems, errors.New("num_threads cannot be negative"))
	}
	for _, d := range c.SpiderDays {
		if d < 0 {
			problems = append(problems, errors.New("spider_days cannot be negative"))
			break
		}
	}
	if _, err := ParseColor(c.HighlightColor); c.HighlightColor != "" && err != nil {
		problems = append(problems, err)
	}

	for i := range c.SpiderSkips {
		if err := c.SpiderSkips[i].compile(); err != nil {
			problems = append(problems, err)
		}
	}

	for _, p := range c.Paths {
		if p.Label == "" || p.Path == "" {
			problems = append(problems, fmt.Errorf("path %q has no value", p.Label))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
}
