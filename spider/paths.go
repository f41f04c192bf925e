package spider

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"gopkg.in/yaml.v3"
)

var unsafeLabel = regexp.MustCompile(`[^a-z0-9_\-]+`)

// Label turns a path into a directory-safe label: "/" is "home",
// "/uk/news" is "uk__news".
func Label(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "home"
	}
	label := strings.ToLower(strings.ReplaceAll(trimmed, "/", "__"))
	return unsafeLabel.ReplaceAllString(label, "_")
}

// Labelled converts crawled paths to labelled entries. Colliding labels get
// the lowest numeric suffix, starting at _2, that no other entry uses.
func Labelled(paths []string) config.Paths {
	out := make(config.Paths, 0, len(paths))
	used := map[string]bool{}
	next := map[string]int{}
	for _, p := range paths {
		base := Label(p)
		label := base
		for used[label] {
			next[base]++
			label = fmt.Sprintf("%s_%d", base, next[base]+1)
		}
		used[label] = true
		out = append(out, config.PathEntry{Label: label, Path: p})
	}
	return out
}

// WriteFile stores paths as a YAML mapping of label to path. The write is
// atomic so a concurrent reader never sees a partial file.
func WriteFile(filename string, paths config.Paths) error {
	data, err := yaml.Marshal(map[string]config.Paths{"paths": paths})
	if err != nil {
		return fmt.Errorf("encode spider file: %w", err)
	}
	if err := renameio.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write spider file: %w", err)
	}
	return nil
}

// ReadFile loads paths written by WriteFile.
func ReadFile(filename string) (config.Paths, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Paths config.Paths `yaml:"paths"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spider file: %w", err)
	}
	return doc.Paths, nil
}

// Fresh reports whether filename exists and is younger than maxAgeDays.
func Fresh(filename string, maxAgeDays int, now time.Time) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) < time.Duration(maxAgeDays)*24*time.Hour
}

// Discover returns the paths to capture for cfg: the configured paths when
// present, otherwise the spider file when it is fresh, otherwise a new
// crawl of the base domain, which is then saved to the spider file.
func (s *Spider) Discover(ctx context.Context, cfg *config.Config, force bool) (config.Paths, error) {
	if len(cfg.Paths) > 0 && !force {
		return cfg.Paths, nil
	}

	if !force && Fresh(cfg.SpiderFile, cfg.SpiderMaxAgeDays(), time.Now()) {
		paths, err := ReadFile(cfg.SpiderFile)
		if err == nil {
			s.logger.Info(ctx, "using cached spider file", map[string]interface{}{
				"file":  cfg.SpiderFile,
				"paths": len(paths),
			})
			return paths, nil
		}
		s.logger.Warn(ctx, "ignoring unreadable spider file", map[string]interface{}{
			"file":  cfg.SpiderFile,
			"error": err.Error(),
		})
	}

	base, ok := cfg.BaseDomain()
	if !ok {
		return nil, fmt.Errorf("spider: no domain configured")
	}
	found, err := s.Crawl(ctx, base.URL, cfg.SpiderSkips)
	if err != nil {
		return nil, fmt.Errorf("spider %s: %w", base.URL, err)
	}
	paths := Labelled(found)
	if err := WriteFile(cfg.SpiderFile, paths); err != nil {
		return nil, err
	}
	return paths, nil
}
