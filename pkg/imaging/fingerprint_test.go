/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fingerprint_test.go
Description: Tests for perceptual fingerprinting. Verifies determinism,
resolution tolerance, Hamming distance behavior, and decode error handling.
*/

package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitImage builds an image whose left half is dark and right half is bright
func splitImage(w, h int, left, right uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := left
			if x >= w/2 {
				v = right
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return g
}

func TestFingerprintIdenticalImages(t *testing.T) {
	img := splitImage(64, 64, 10, 240)

	a := FingerprintImage(img)
	b := FingerprintImage(img)

	assert.Equal(t, a, b, "same pixels must produce the same fingerprint")
	assert.Equal(t, 0, Distance(a, b), "identical images must be at distance zero")
}

func TestFingerprintOppositeImages(t *testing.T) {
	bright := splitImage(64, 64, 10, 240)
	inverted := splitImage(64, 64, 240, 10)

	d := Distance(FingerprintImage(bright), FingerprintImage(inverted))
	assert.Equal(t, 64, d, "inverted halves must flip every fingerprint bit")
}

func TestFingerprintSurvivesRescale(t *testing.T) {
	big := splitImage(400, 800, 10, 240)
	small := splitImage(100, 200, 10, 240)

	d := Distance(FingerprintImage(big), FingerprintImage(small))
	assert.LessOrEqual(t, d, 2, "the same screen at different resolutions must stay close")
}

func TestFingerprintFileRoundTrip(t *testing.T) {
	img := splitImage(64, 64, 10, 240)
	path := filepath.Join(t.TempDir(), "state.png")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	fromFile, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, FingerprintImage(img), fromFile)
}

func TestFingerprintFileMissing(t *testing.T) {
	_, err := FingerprintFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDecode, "a missing file is an I/O error, not a decode error")
}

func TestFingerprintFileUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0644))

	_, err := FingerprintFile(path)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDistanceSymmetry(t *testing.T) {
	a := Fingerprint(0xDEADBEEFCAFEF00D)
	b := Fingerprint(0x0123456789ABCDEF)

	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Equal(t, 0, Distance(a, a))
}
