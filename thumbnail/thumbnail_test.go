package thumbnail

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func striped(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: 255, A: 255}
		if y >= h/2 {
			c = color.RGBA{B: 255, A: 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestThumbnail_CropsLongPagesFromTop(t *testing.T) {
	// 100x1000: top half red, bottom half blue. A 50x50 thumbnail only
	// shows the first 100 rows.
	thumb := Thumbnail(striped(100, 1000), 50, 50)

	assert.Equal(t, image.Rect(0, 0, 50, 50), thumb.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, thumb.RGBAAt(25, 25))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, thumb.RGBAAt(25, 49))
}

func TestThumbnail_EmptySource(t *testing.T) {
	thumb := Thumbnail(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10)
	assert.Equal(t, image.Rect(0, 0, 10, 10), thumb.Bounds())
}

func TestGenerator_Run(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"320_current.png", "320_new.png", "320_diff.png"} {
		testutil.WritePNG(t, filepath.Join(dir, "home", name), striped(320, 900))
	}
	testutil.WriteFile(t, filepath.Join(dir, "home", "320_data.txt"), "0.00")

	n, err := NewGenerator(64, 48, 2, logger.NewTestLogger()).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	thumb, err := compare.Load(Path(dir, "home", "320_diff.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), thumb.Bounds())

	// A second run must not thumbnail the thumbnails.
	n, err = NewGenerator(64, 48, 2, logger.NewTestLogger()).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
