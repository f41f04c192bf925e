package capture

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hairizuanbinnoorazman/shotdiff/config"
)

// FileName is the shot file name for a size and domain label, e.g. 320_current.png.
func FileName(size config.ScreenSize, domain string) string {
	return fmt.Sprintf("%s_%s.png", size, domain)
}

// JoinURL appends path to a domain base URL.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Plan lists every shot for paths × domains × sizes, written under dir as
// <dir>/<label>/<size>_<domain>.png.
func Plan(dir string, paths config.Paths, domains config.Domains, sizes []config.ScreenSize, beforeCapture string) []Shot {
	shots := make([]Shot, 0, len(paths)*len(domains)*len(sizes))
	for _, p := range paths {
		script := p.BeforeCapture
		if script == "" {
			script = beforeCapture
		}
		for _, d := range domains {
			for _, size := range sizes {
				shots = append(shots, Shot{
					Label:         p.Label,
					Domain:        d.Label,
					URL:           JoinURL(d.URL, p.Path),
					Size:          size,
					Selector:      p.Selector,
					BeforeCapture: script,
					File:          filepath.Join(dir, p.Label, FileName(size, d.Label)),
				})
			}
		}
	}
	return shots
}

// Batch groups shots sharing a URL so a Resizer can load each page once.
// With resize false every shot is its own batch, i.e. the page is reloaded
// for each size.
func Batch(shots []Shot, resize bool) [][]Shot {
	if !resize {
		batches := make([][]Shot, len(shots))
		for i, s := range shots {
			batches[i] = []Shot{s}
		}
		return batches
	}

	var batches [][]Shot
	index := map[string]int{}
	for _, s := range shots {
		key := s.URL + "\x00" + s.Selector + "\x00" + s.BeforeCapture
		i, ok := index[key]
		if !ok {
			i = len(batches)
			index[key] = i
			batches = append(batches, nil)
		}
		batches[i] = append(batches[i], s)
	}
	return batches
}
