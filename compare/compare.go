// Package compare diffs pairs of screenshots.
package compare

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strconv"

	// Decoders for the formats external engines may write.
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/google/renameio/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
)

var maxRGBDistance = math.Sqrt(3)

// Options controls how strictly pixels are compared.
type Options struct {
	// Fuzz is the colour distance, in percent, under which two pixels count as equal.
	Fuzz float64
	// Highlight is the colour differing pixels are painted in the diff image.
	Highlight colorful.Color
}

// Result is the outcome of comparing two images.
type Result struct {
	// Diff is the share of differing pixels, 0 to 100.
	Diff    float64
	Changed int
	Total   int
	Image   *image.RGBA
}

// Images compares a and b over the union of their bounds. Pixels present in
// only one of the images always differ.
func Images(a, b image.Image, opts Options) Result {
	ab, bb := a.Bounds(), b.Bounds()
	w := max(ab.Dx(), bb.Dx())
	h := max(ab.Dy(), bb.Dy())

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	highlight := toRGBA(opts.Highlight)
	res := Result{Total: w * h, Image: out}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa := image.Pt(ab.Min.X+x, ab.Min.Y+y)
			pb := image.Pt(bb.Min.X+x, bb.Min.Y+y)
			inA, inB := pa.In(ab), pb.In(bb)

			if !inA || !inB {
				res.Changed++
				out.SetRGBA(x, y, highlight)
				continue
			}

			ca, cb := a.At(pa.X, pa.Y), b.At(pb.X, pb.Y)
			if Distance(ca, cb) > opts.Fuzz {
				res.Changed++
				out.SetRGBA(x, y, highlight)
				continue
			}
			out.SetRGBA(x, y, dim(ca))
		}
	}

	if res.Total > 0 {
		res.Diff = float64(res.Changed) * 100 / float64(res.Total)
	}
	return res
}

// Distance is the RGB distance between two colours as a percentage of the
// largest possible distance.
func Distance(a, b color.Color) float64 {
	return toColorful(a).DistanceRgb(toColorful(b)) / maxRGBDistance * 100
}

func toColorful(c color.Color) colorful.Color {
	r, g, b, _ := c.RGBA()
	return colorful.Color{
		R: float64(r) / 0xffff,
		G: float64(g) / 0xffff,
		B: float64(b) / 0xffff,
	}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// dim renders an unchanged pixel as a faded grey so changes stand out.
func dim(c color.Color) color.RGBA {
	gray := color.GrayModel.Convert(c).(color.Gray)
	v := uint8(0xc0 + uint16(gray.Y)/4)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

// Load decodes an image file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Files compares two image files and writes the diff image and a data file
// holding the difference percentage.
func Files(baseFile, compareFile, diffFile, dataFile string, opts Options) (Result, error) {
	a, err := Load(baseFile)
	if err != nil {
		return Result{}, err
	}
	b, err := Load(compareFile)
	if err != nil {
		return Result{}, err
	}

	res := Images(a, b, opts)

	pending, err := renameio.NewPendingFile(diffFile)
	if err != nil {
		return Result{}, fmt.Errorf("create diff image: %w", err)
	}
	defer pending.Cleanup()
	if err := png.Encode(pending, res.Image); err != nil {
		return Result{}, fmt.Errorf("encode diff image: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return Result{}, fmt.Errorf("write diff image: %w", err)
	}

	if err := renameio.WriteFile(dataFile, []byte(strconv.FormatFloat(res.Diff, 'f', -1, 64)), 0644); err != nil {
		return Result{}, fmt.Errorf("write diff data: %w", err)
	}
	return res, nil
}

// FormatDiff renders a percentage for display with two decimals. A
// difference too small to show is "<0.01", never "0.00".
func FormatDiff(diff float64) string {
	if diff > 0 && diff < 0.005 {
		return "<0.01"
	}
	return fmt.Sprintf("%.2f", diff)
}
