package compare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"golang.org/x/sync/errgroup"
)

// Pair is a base shot and the shot it is compared against.
type Pair struct {
	Label       string
	Size        string
	BaseFile    string
	CompareFile string
	DiffFile    string
	DataFile    string
}

// PairResult is a compared pair.
type PairResult struct {
	Pair
	Diff float64
}

// Pairs finds every <dir>/<label>/<size>_<base>.png that has a matching
// <size>_<other>.png. Pairs are ordered by label, then size.
func Pairs(dir, base, other string) ([]Pair, error) {
	labels, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read shots directory: %w", err)
	}

	var pairs []Pair
	suffix := "_" + base + ".png"
	for _, l := range labels {
		if !l.IsDir() || l.Name() == ThumbnailDir {
			continue
		}
		labelDir := filepath.Join(dir, l.Name())
		files, err := os.ReadDir(labelDir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), suffix) {
				continue
			}
			size := strings.TrimSuffix(f.Name(), suffix)
			compareFile := filepath.Join(labelDir, size+"_"+other+".png")
			if _, err := os.Stat(compareFile); err != nil {
				continue
			}
			pairs = append(pairs, Pair{
				Label:       l.Name(),
				Size:        size,
				BaseFile:    filepath.Join(labelDir, f.Name()),
				CompareFile: compareFile,
				DiffFile:    filepath.Join(labelDir, size+"_diff.png"),
				DataFile:    filepath.Join(labelDir, size+"_data.txt"),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Label != pairs[j].Label {
			return pairs[i].Label < pairs[j].Label
		}
		return sizeKey(pairs[i].Size) < sizeKey(pairs[j].Size)
	})
	return pairs, nil
}

// ThumbnailDir is skipped when scanning for pairs.
const ThumbnailDir = "thumbnails"

func sizeKey(size string) int {
	w, _, _ := strings.Cut(size, "x")
	n, _ := strconv.Atoi(w)
	return n
}

// Comparer diffs pairs concurrently.
type Comparer struct {
	opts        Options
	concurrency int
	logger      logger.Logger
}

// NewComparer creates a Comparer.
func NewComparer(opts Options, concurrency int, log logger.Logger) *Comparer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Comparer{
		opts:        opts,
		concurrency: concurrency,
		logger:      log.WithField("component", "compare"),
	}
}

// Run compares all pairs. Results keep the order of pairs. A pair that
// cannot be compared is reported in the returned error; the others still run.
func (c *Comparer) Run(ctx context.Context, pairs []Pair) ([]PairResult, error) {
	results := make([]PairResult, len(pairs))
	failed := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Files(p.BaseFile, p.CompareFile, p.DiffFile, p.DataFile, c.opts)
			if err != nil {
				c.logger.Error(gctx, "failed to compare images", map[string]interface{}{
					"label": p.Label,
					"size":  p.Size,
					"error": err.Error(),
				})
				failed[i] = fmt.Errorf("%s %s: %w", p.Label, p.Size, err)
				return nil
			}
			results[i] = PairResult{Pair: p, Diff: res.Diff}
			c.logger.Debug(gctx, "images compared", map[string]interface{}{
				"label": p.Label,
				"size":  p.Size,
				"diff":  res.Diff,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	done := results[:0]
	for i, r := range results {
		if failed[i] != nil {
			errs = append(errs, failed[i])
			continue
		}
		done = append(done, r)
	}
	return done, errors.Join(errs...)
}

// ReadDiff reads a data file written by Files.
func ReadDiff(dataFile string) (float64, error) {
	data, err := os.ReadFile(dataFile)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", dataFile, err)
	}
	return v, nil
}
