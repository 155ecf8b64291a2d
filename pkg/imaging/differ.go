/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: differ.go
Description: Rotation-tolerant visual differencing for device screen states.
Classifies consecutive screenshots as unchanged, benignly rotated, or
significantly changed by counting per-pixel intensity deltas.
*/

package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// Differ compares screen states pixel by pixel. All thresholds are
// hand-calibrated for phone-sized screenshots and exposed for retuning.
type Differ struct {
	// PixelThreshold is the minimum grayscale intensity delta for a pixel to
	// count as changed. Filters compression and anti-aliasing noise.
	PixelThreshold uint8
	// AreaThreshold is the changed-pixel fraction above which two screens are
	// considered significantly different.
	AreaThreshold float64
	// RotationThreshold is the much tighter changed-pixel fraction under which
	// a rotated variant of one screen is considered identical to the other.
	RotationThreshold float64
}

// NewDiffer creates a differ with the given thresholds
func NewDiffer(pixelThreshold uint8, areaThreshold, rotationThreshold float64) *Differ {
	return &Differ{
		PixelThreshold:    pixelThreshold,
		AreaThreshold:     areaThreshold,
		RotationThreshold: rotationThreshold,
	}
}

// DefaultDiffer returns a differ with the calibrated default thresholds
func DefaultDiffer() *Differ {
	return NewDiffer(25, 0.15, 0.05)
}

// ChangeRatio returns the fraction of pixels whose grayscale intensity differs
// by more than PixelThreshold. Images of different dimensions are compared by
// resampling the second to the first's size, so a resolution change that is
// not explained by rotation surfaces as a large ratio.
func (d *Differ) ChangeRatio(a, b image.Image) float64 {
	return d.ratioGray(grayscale(a), grayscale(b))
}

// Significant reports whether two screens differ significantly, along with the
// measured change ratio. An image is never significantly different from itself.
func (d *Differ) Significant(a, b image.Image) (bool, float64) {
	ratio := d.ChangeRatio(a, b)
	return ratio > d.AreaThreshold, ratio
}

// RotationOnly reports whether b is a benign orientation change of a: some
// 90, 180, or 270 degree rotation of a matches b within RotationThreshold.
// Callers classifying data loss must consult this before Significant, since a
// rotation rearranges most pixels and would otherwise read as a large change.
func (d *Differ) RotationOnly(a, b image.Image) bool {
	ga, gb := grayscale(a), grayscale(b)
	for _, rotate := range []func(*image.Gray) *image.Gray{rotate90, rotate180, rotate270} {
		if d.ratioGray(rotate(ga), gb) <= d.RotationThreshold {
			return true
		}
	}
	return false
}

// ratioGray counts differing pixels over normalized grayscale images,
// resampling b when dimensions differ
func (d *Differ) ratioGray(a, b *image.Gray) float64 {
	if !a.Bounds().Size().Eq(b.Bounds().Size()) {
		b = resample(b, a.Bounds())
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}

	threshold := int(d.PixelThreshold)
	changed := 0
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			delta := int(ra[x]) - int(rb[x])
			if delta < 0 {
				delta = -delta
			}
			if delta > threshold {
				changed++
			}
		}
	}
	return float64(changed) / float64(w*h)
}

// grayscale converts an image to grayscale with bounds normalized to the origin
func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// resample scales src to the target bounds
func resample(src *image.Gray, bounds image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// rotate90 rotates a quarter turn counterclockwise
func rotate90(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(y, w-1-x, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// rotate180 rotates a half turn
func rotate180(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(w-1-x, h-1-y, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// rotate270 rotates a quarter turn clockwise
func rotate270(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(h-1-y, x, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
