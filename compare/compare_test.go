package compare

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/testutil"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = colorful.Color{R: 1}

func TestImages_Identical(t *testing.T) {
	a := testutil.SolidImage(10, 10, color.White)
	res := Images(a, testutil.SolidImage(10, 10, color.White), Options{Highlight: red})

	assert.Equal(t, 0.0, res.Diff)
	assert.Equal(t, 0, res.Changed)
	assert.Equal(t, 100, res.Total)
}

func TestImages_CountsChangedPixels(t *testing.T) {
	a := testutil.SolidImage(10, 10, color.White)
	b := testutil.SolidImage(10, 10, color.White)
	b.Set(3, 4, color.Black)
	b.Set(5, 5, color.Black)

	res := Images(a, b, Options{Highlight: red})
	assert.Equal(t, 2, res.Changed)
	assert.InDelta(t, 2.0, res.Diff, 1e-9)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, res.Image.RGBAAt(3, 4))
	assert.NotEqual(t, color.RGBA{R: 0xff, A: 0xff}, res.Image.RGBAAt(0, 0))
}

func TestImages_FuzzTolerance(t *testing.T) {
	a := testutil.SolidImage(4, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	b := testutil.SolidImage(4, 4, color.RGBA{R: 110, G: 100, B: 100, A: 255})

	strict := Images(a, b, Options{Fuzz: 0})
	assert.Equal(t, 100.0, strict.Diff)

	tolerant := Images(a, b, Options{Fuzz: 20})
	assert.Equal(t, 0.0, tolerant.Diff)
}

func TestImages_SizeMismatch(t *testing.T) {
	a := testutil.SolidImage(10, 10, color.White)
	b := testutil.SolidImage(10, 5, color.White)

	res := Images(a, b, Options{})
	assert.Equal(t, 100, res.Total)
	assert.Equal(t, 50, res.Changed)
	assert.Equal(t, image.Rect(0, 0, 10, 10), res.Image.Bounds())
}

func TestImages_OffsetBounds(t *testing.T) {
	a := testutil.SolidImage(4, 4, color.White)
	b := testutil.SolidImage(8, 8, color.White).SubImage(image.Rect(4, 4, 8, 8))

	res := Images(a, b, Options{})
	assert.Equal(t, 0.0, res.Diff)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(color.White, color.White), 1e-9)
	assert.InDelta(t, 100, Distance(color.White, color.Black), 1e-9)
}

func TestFiles_WritesDiffAndData(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "home", "320_current.png")
	other := filepath.Join(dir, "home", "320_new.png")
	changed := testutil.SolidImage(10, 10, color.White)
	for x := 0; x < 10; x++ {
		changed.Set(x, 0, color.Black)
	}
	testutil.WritePNG(t, base, testutil.SolidImage(10, 10, color.White))
	testutil.WritePNG(t, other, changed)

	diffFile := filepath.Join(dir, "home", "320_diff.png")
	dataFile := filepath.Join(dir, "home", "320_data.txt")
	res, err := Files(base, other, diffFile, dataFile, Options{Highlight: red})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.Diff, 1e-9)

	got, err := ReadDiff(dataFile)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	diffImg, err := Load(diffFile)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), diffImg.Bounds())
}

func TestFiles_KeepsTinyDifferences(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "home", "1280_current.png")
	other := filepath.Join(dir, "home", "1280_new.png")
	changed := testutil.SolidImage(400, 400, color.White)
	changed.Set(200, 200, color.Black)
	testutil.WritePNG(t, base, testutil.SolidImage(400, 400, color.White))
	testutil.WritePNG(t, other, changed)

	dataFile := filepath.Join(dir, "home", "1280_data.txt")
	res, err := Files(base, other, filepath.Join(dir, "home", "1280_diff.png"), dataFile, Options{Highlight: red})
	require.NoError(t, err)
	assert.InDelta(t, 0.000625, res.Diff, 1e-12)

	got, err := ReadDiff(dataFile)
	require.NoError(t, err)
	assert.Equal(t, res.Diff, got)
	assert.Greater(t, got, 0.0)
}

func TestFormatDiff(t *testing.T) {
	tests := []struct {
		diff float64
		want string
	}{
		{diff: 0, want: "0.00"},
		{diff: 0.000625, want: "<0.01"},
		{diff: 0.005, want: "0.01"},
		{diff: 12.346, want: "12.35"},
		{diff: 100, want: "100.00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatDiff(tc.diff), "diff %v", tc.diff)
	}
}

func TestFiles_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := Files(filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "d.png"), filepath.Join(dir, "d.txt"), Options{})
	assert.Error(t, err)
}

func TestPairs(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SolidImage(2, 2, color.White)
	testutil.WritePNG(t, filepath.Join(dir, "home", "1280_current.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "home", "1280_new.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "home", "320_current.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "home", "320_new.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "about", "600x768_current.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "about", "600x768_new.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, "orphan", "320_current.png"), img)
	testutil.WritePNG(t, filepath.Join(dir, ThumbnailDir, "home", "320_current.png"), img)

	pairs, err := Pairs(dir, "current", "new")
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Equal(t, "about", pairs[0].Label)
	assert.Equal(t, "600x768", pairs[0].Size)
	assert.Equal(t, "320", pairs[1].Size)
	assert.Equal(t, "1280", pairs[2].Size)
	assert.Equal(t, filepath.Join(dir, "home", "320_diff.png"), pairs[1].DiffFile)
	assert.Equal(t, filepath.Join(dir, "home", "320_data.txt"), pairs[1].DataFile)
}

func TestComparer_Run(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePNG(t, filepath.Join(dir, "home", "320_current.png"), testutil.SolidImage(4, 4, color.White))
	testutil.WritePNG(t, filepath.Join(dir, "home", "320_new.png"), testutil.SolidImage(4, 4, color.Black))
	testutil.WritePNG(t, filepath.Join(dir, "about", "320_current.png"), testutil.SolidImage(4, 4, color.White))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "about", "320_new.png"), []byte("not a png"), 0644))

	pairs, err := Pairs(dir, "current", "new")
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	log := logger.NewTestLogger()
	results, err := NewComparer(Options{Highlight: red}, 2, log).Run(context.Background(), pairs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "about 320")

	require.Len(t, results, 1)
	assert.Equal(t, "home", results[0].Label)
	assert.Equal(t, 100.0, results[0].Diff)
	assert.Equal(t, []string{"failed to compare images"}, log.Messages("error"))
}
