package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"golang.org/x/sync/errgroup"
)

// Published summarises a Publish call.
type Published struct {
	Files int
	Bytes int64
	// URL of the uploaded gallery page, empty when the directory had none.
	GalleryURL string
	// Pruned counts stale keys removed by Prune.
	Pruned int
	// Keys are the uploaded keys, in upload order.
	Keys []string `json:"-"`
}

// Publish uploads every file under dir to store below prefix, keeping the
// directory layout so relative links in the gallery keep working.
func Publish(ctx context.Context, store BlobStorage, dir, prefix string, concurrency int, log logger.Logger) (Published, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Published{}, fmt.Errorf("scan %s: %w", dir, err)
	}

	keys := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return Published{}, err
		}
		keys[i] = path.Join(prefix, filepath.ToSlash(rel))
	}

	var bytes atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, f := range files {
		f := f
		key := keys[i]
		g.Go(func() error {
			file, err := os.Open(f)
			if err != nil {
				return err
			}
			defer file.Close()

			if err := store.Upload(gctx, key, file); err != nil {
				return fmt.Errorf("publish %s: %w", key, err)
			}
			if info, err := file.Stat(); err == nil {
				bytes.Add(info.Size())
			}
			log.Debug(gctx, "file published", map[string]interface{}{
				"key": key,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Published{}, err
	}

	out := Published{Files: len(files), Bytes: bytes.Load(), Keys: keys}
	galleryKey := path.Join(prefix, "gallery.html")
	if url, err := store.GetURL(ctx, galleryKey); err == nil {
		out.GalleryURL = url
	}

	log.Info(ctx, "output published", map[string]interface{}{
		"files":  out.Files,
		"bytes":  out.Bytes,
		"prefix": prefix,
	})
	return out, nil
}

// Prune deletes every key under prefix that is not in keep, so a republished
// run does not keep shots of pages it no longer captures. It returns how
// many keys were deleted.
func Prune(ctx context.Context, store BlobStorage, prefix string, keep []string, log logger.Logger) (int, error) {
	existing, err := store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %q: %w", prefix, err)
	}

	wanted := make(map[string]bool, len(keep))
	for _, k := range keep {
		wanted[k] = true
	}

	deleted := 0
	for _, key := range existing {
		if wanted[key] {
			continue
		}
		if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrFileNotFound) {
			return deleted, fmt.Errorf("prune %s: %w", key, err)
		}
		deleted++
		log.Debug(ctx, "stale file pruned", map[string]interface{}{
			"key": key,
		})
	}

	log.Info(ctx, "published output pruned", map[string]interface{}{
		"deleted": deleted,
		"prefix":  prefix,
	})
	return deleted, nil
}
