// Package thumbnail scales shots down for the gallery.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Path returns where the thumbnail for <dir>/<label>/<file> is written.
func Path(dir, label, file string) string {
	return filepath.Join(dir, compare.ThumbnailDir, label, file)
}

// Thumbnail scales src to cover w×h and crops the overflow. Long pages are
// cropped from the top, wide ones around the centre.
func Thumbnail(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	if sb.Empty() || w <= 0 || h <= 0 {
		return dst
	}

	scale := max(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	srcW := min(sb.Dx(), int(float64(w)/scale+0.5))
	srcH := min(sb.Dy(), int(float64(h)/scale+0.5))
	x0 := sb.Min.X + (sb.Dx()-srcW)/2
	crop := image.Rect(x0, sb.Min.Y, x0+srcW, sb.Min.Y+srcH)

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

// Generator writes thumbnails for every shot in a directory tree.
type Generator struct {
	width       int
	height      int
	concurrency int
	logger      logger.Logger
}

// NewGenerator creates a Generator producing w×h thumbnails.
func NewGenerator(w, h, concurrency int, log logger.Logger) *Generator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Generator{
		width:       w,
		height:      h,
		concurrency: concurrency,
		logger:      log.WithField("component", "thumbnail"),
	}
}

// Run thumbnails every PNG under <dir>/<label>/ and returns how many it wrote.
func (g *Generator) Run(ctx context.Context, dir string) (int, error) {
	labels, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read shots directory: %w", err)
	}

	type job struct{ label, file string }
	var jobs []job
	for _, l := range labels {
		if !l.IsDir() || l.Name() == compare.ThumbnailDir {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, l.Name()))
		if err != nil {
			return 0, err
		}
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".png") {
				jobs = append(jobs, job{label: l.Name(), file: f.Name()})
			}
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, j := range jobs {
		j := j
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			src := filepath.Join(dir, j.label, j.file)
			if err := g.write(src, Path(dir, j.label, j.file)); err != nil {
				return fmt.Errorf("thumbnail %s: %w", src, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	g.logger.Info(ctx, "thumbnails generated", map[string]interface{}{
		"count": len(jobs),
		"size":  fmt.Sprintf("%dx%d", g.width, g.height),
	})
	return len(jobs), nil
}

func (g *Generator) write(src, dst string) error {
	img, err := compare.Load(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer pending.Cleanup()
	if err := png.Encode(pending, Thumbnail(img, g.width, g.height)); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
