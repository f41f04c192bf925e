// Package gallery renders the HTML report of a comparison run.
package gallery

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/hairizuanbinnoorazman/shotdiff/thumbnail"
)

// FileName is the gallery page written into the shots directory.
const FileName = "gallery.html"

var (
	// ErrThresholdExceeded is returned when any shot differs more than the threshold allows.
	ErrThresholdExceeded = errors.New("difference threshold exceeded")

	// ErrUnknownTemplate is returned for a gallery template that does not exist.
	ErrUnknownTemplate = errors.New("unknown gallery template")
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": func(v float64) string { return compare.FormatDiff(v) + "%" },
}).ParseFS(templateFS, "templates/*.html"))

// Image is one picture in the gallery, with paths relative to the gallery page.
type Image struct {
	File  string
	Thumb string
}

// Size is the comparison of one label at one screen size.
type Size struct {
	Size     string
	Base     Image
	Compare  Image
	Diff     Image
	Percent  float64
	Compared bool
	Failed   bool
}

// Entry groups every size captured for a label.
type Entry struct {
	Label   string
	Sizes   []Size
	MaxDiff float64
}

// Gallery is the data behind gallery.html.
type Gallery struct {
	BaseDomain    string
	CompareDomain string
	Threshold     float64
	Mode          config.Mode
	GeneratedAt   time.Time
	Entries       []Entry
}

// Build scans dir for compared pairs of base and other and orders them for
// mode. Pairs without a data file are listed as not compared.
func Build(dir, base, other string, threshold float64, mode config.Mode) (*Gallery, error) {
	pairs, err := compare.Pairs(dir, base, other)
	if err != nil {
		return nil, err
	}

	rel := func(p string) string {
		r, err := filepath.Rel(dir, p)
		if err != nil {
			return filepath.ToSlash(p)
		}
		return filepath.ToSlash(r)
	}
	image := func(p compare.Pair, file string) Image {
		return Image{
			File:  rel(file),
			Thumb: rel(thumbnail.Path(dir, p.Label, filepath.Base(file))),
		}
	}

	byLabel := map[string]*Entry{}
	var order []string
	for _, p := range pairs {
		e, ok := byLabel[p.Label]
		if !ok {
			e = &Entry{Label: p.Label}
			byLabel[p.Label] = e
			order = append(order, p.Label)
		}
		s := Size{
			Size:    p.Size,
			Base:    image(p, p.BaseFile),
			Compare: image(p, p.CompareFile),
			Diff:    image(p, p.DiffFile),
		}
		if diff, err := compare.ReadDiff(p.DataFile); err == nil {
			s.Percent = diff
			s.Compared = true
			s.Failed = diff > threshold
			e.MaxDiff = max(e.MaxDiff, diff)
		}
		e.Sizes = append(e.Sizes, s)
	}

	g := &Gallery{
		BaseDomain:    base,
		CompareDomain: other,
		Threshold:     threshold,
		Mode:          mode,
		GeneratedAt:   time.Now().UTC(),
	}
	for _, label := range order {
		g.Entries = append(g.Entries, *byLabel[label])
	}
	g.Entries = Arrange(g.Entries, mode)
	return g, nil
}

// Arrange orders entries for a gallery mode: alphanumeric by label,
// diffs_first by largest difference, diffs_only like diffs_first but
// dropping labels without any difference.
func Arrange(entries []Entry, mode config.Mode) []Entry {
	out := append([]Entry(nil), entries...)
	byLabel := func(i, j int) bool { return out[i].Label < out[j].Label }

	switch mode {
	case config.ModeDiffsFirst, config.ModeDiffsOnly:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].MaxDiff != out[j].MaxDiff {
				return out[i].MaxDiff > out[j].MaxDiff
			}
			return byLabel(i, j)
		})
		if mode == config.ModeDiffsOnly {
			kept := out[:0]
			for _, e := range out {
				if e.MaxDiff > 0 {
					kept = append(kept, e)
				}
			}
			out = kept
		}
	default:
		sort.SliceStable(out, byLabel)
	}
	return out
}

// Failures lists "label size (diff%)" for every size over the threshold.
func (g *Gallery) Failures() []string {
	var out []string
	for _, e := range g.Entries {
		for _, s := range e.Sizes {
			if s.Failed {
				out = append(out, fmt.Sprintf("%s %s (%s%%)", e.Label, s.Size, compare.FormatDiff(s.Percent)))
			}
		}
	}
	return out
}

// CheckThreshold returns ErrThresholdExceeded naming every failing shot.
func (g *Gallery) CheckThreshold() error {
	failures := g.Failures()
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%w (%.2f%%): %s", ErrThresholdExceeded, g.Threshold, strings.Join(failures, ", "))
}

// Render executes the named template into w.
func (g *Gallery) Render(w io.Writer, templateName string) error {
	t := templates.Lookup(templateName + ".html")
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, templateName)
	}
	return t.Execute(w, g)
}

// Write renders the gallery to <dir>/gallery.html and returns the path.
func (g *Gallery) Write(dir, templateName string) (string, error) {
	var buf bytes.Buffer
	if err := g.Render(&buf, templateName); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write gallery: %w", err)
	}
	return path, nil
}

// Templates lists the available template names.
func Templates() []string {
	var names []string
	for _, t := range templates.Templates() {
		if name, ok := strings.CutSuffix(t.Name(), ".html"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
