/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: differ_test.go
Description: Tests for rotation-tolerant visual differencing. Verifies the
noise floor, significant-change detection, rotation exemption for all three
orientations, and cross-resolution comparison.
*/

package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

// quadImage builds an asymmetric four-quadrant image so that every rotation
// is visually distinct from the original
func quadImage(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			switch {
			case x < w/2 && y < h/2:
				v = 0
			case x >= w/2 && y < h/2:
				v = 85
			case x < w/2 && y >= h/2:
				v = 170
			default:
				v = 255
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return g
}

// turnCW rotates a quarter turn clockwise. Written independently of the
// package rotation helpers so they cannot vouch for themselves.
func turnCW(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(h-1-y, x, src.GrayAt(x, y))
		}
	}
	return dst
}

func TestSignificantIdenticalImage(t *testing.T) {
	d := DefaultDiffer()
	img := quadImage(40, 60)

	significant, ratio := d.Significant(img, img)
	assert.False(t, significant, "an image must never differ significantly from itself")
	assert.Zero(t, ratio)
}

func TestSignificantDetectsMajorChange(t *testing.T) {
	d := DefaultDiffer()
	a := quadImage(40, 60)
	b := image.NewGray(image.Rect(0, 0, 40, 60))
	for i := range b.Pix {
		b.Pix[i] = 128
	}

	significant, ratio := d.Significant(a, b)
	assert.True(t, significant)
	assert.Greater(t, ratio, 0.5, "flattening every quadrant should change most pixels")
}

func TestChangeRatioIgnoresSensorNoise(t *testing.T) {
	d := DefaultDiffer()
	a := quadImage(40, 60)
	b := image.NewGray(a.Bounds())
	copy(b.Pix, a.Pix)
	for i := range b.Pix {
		if b.Pix[i] < 245 {
			b.Pix[i] += 10
		}
	}

	assert.Zero(t, d.ChangeRatio(a, b), "deltas below the pixel threshold must not count as change")
}

func TestRotationOnlyAllTurns(t *testing.T) {
	d := DefaultDiffer()
	a := quadImage(40, 60)

	quarter := turnCW(a)
	half := turnCW(quarter)
	threeQuarter := turnCW(half)

	assert.True(t, d.RotationOnly(a, quarter), "90 degree turn must be exempt")
	assert.True(t, d.RotationOnly(a, half), "180 degree turn must be exempt")
	assert.True(t, d.RotationOnly(a, threeQuarter), "270 degree turn must be exempt")
}

func TestRotationOnlyRejectsRealChange(t *testing.T) {
	d := DefaultDiffer()
	a := quadImage(40, 60)
	b := image.NewGray(image.Rect(0, 0, 40, 60))
	for i := range b.Pix {
		b.Pix[i] = 128
	}

	assert.False(t, d.RotationOnly(a, b), "a flattened screen is not an orientation change")
}

func TestRotationBeatsSignificance(t *testing.T) {
	d := DefaultDiffer()
	a := quadImage(40, 60)
	rotated := turnCW(a)

	significant, _ := d.Significant(a, rotated)
	assert.True(t, significant, "raw pixel diff reads a rotation as a big change")
	assert.True(t, d.RotationOnly(a, rotated), "which is why rotation is checked first")
}

func TestChangeRatioAcrossResolutions(t *testing.T) {
	d := DefaultDiffer()
	big := quadImage(80, 120)
	small := quadImage(40, 60)

	assert.Less(t, d.ChangeRatio(big, small), d.AreaThreshold, "same screen at half resolution must stay below significance")

	flat := image.NewGray(image.Rect(0, 0, 40, 60))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	assert.Greater(t, d.ChangeRatio(big, flat), d.AreaThreshold)
}
