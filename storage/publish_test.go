package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "gallery.html"), "<html></html>")
	testutil.WriteFile(t, filepath.Join(src, "home", "320_current.png"), "a")
	testutil.WriteFile(t, filepath.Join(src, "home", "320_new.png"), "bb")
	testutil.WriteFile(t, filepath.Join(src, "thumbnails", "home", "320_new.png"), "c")

	dst := t.TempDir()
	store, err := NewLocalStorage(dst)
	require.NoError(t, err)

	log := logger.NewTestLogger()
	out, err := Publish(ctx, store, src, "runs/2026-10-19", 2, log)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Files)
	assert.Equal(t, int64(len("<html></html>")+4), out.Bytes)
	assert.Equal(t, filepath.Join(dst, "runs", "2026-10-19", "gallery.html"), out.GalleryURL)

	keys, err := store.List(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/2026-10-19/gallery.html",
		"runs/2026-10-19/home/320_current.png",
		"runs/2026-10-19/home/320_new.png",
		"runs/2026-10-19/thumbnails/home/320_new.png",
	}, keys)
	assert.NotEmpty(t, log.Messages("info"))
}

func TestPublish_WithoutGallery(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "home", "320_current.png"), "a")

	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	out, err := Publish(context.Background(), store, src, "", 1, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Files)
	assert.Empty(t, out.GalleryURL)
}

func TestPublish_MissingDirectory(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = Publish(context.Background(), store, filepath.Join(t.TempDir(), "nope"), "", 1, logger.NewTestLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{
		"runs/1/gallery.html",
		"runs/1/home/320_current.png",
		"runs/1/removed/320_current.png",
		"runs/2/gallery.html",
	} {
		require.NoError(t, store.Upload(ctx, key, strings.NewReader("x")))
	}

	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "gallery.html"), "<html></html>")
	testutil.WriteFile(t, filepath.Join(src, "home", "320_current.png"), "a")

	log := logger.NewTestLogger()
	out, err := Publish(ctx, store, src, "runs/1", 2, log)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs/1/gallery.html", "runs/1/home/320_current.png"}, out.Keys)

	n, err := Prune(ctx, store, "runs/1", out.Keys, log)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := store.List(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/1/gallery.html",
		"runs/1/home/320_current.png",
		"runs/2/gallery.html",
	}, keys)

	rc, err := store.Download(ctx, "runs/1/home/320_current.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestPrune_NothingStale(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := Prune(context.Background(), store, "runs/9", nil, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}
