/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fingerprint.go
Description: Perceptual average-hash fingerprints for device screen states.
Provides compact 64-bit fingerprints that survive compression artifacts and
minor rendering noise, compared via Hamming distance.
*/

package imaging

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrDecode marks image files that could not be decoded. Callers treat these
// as malformed artifacts: logged and skipped, never retried.
var ErrDecode = errors.New("undecodable image")

// hashGrid is the downscale edge length. 8x8 cells give a 64-bit fingerprint.
const hashGrid = 8

// Fingerprint is a 64-bit perceptual average hash of an image. Each bit marks
// whether one cell of the downscaled grayscale grid is brighter than the grid
// mean. Visually similar screens produce fingerprints with small Hamming
// distance regardless of resolution or encoding.
type Fingerprint uint64

// String returns the fingerprint as fixed-width hex
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// FingerprintImage computes the average-hash fingerprint of an image.
// Deterministic and side-effect free: the same pixels always produce the same
// fingerprint, so identical images are always at distance zero.
func FingerprintImage(img image.Image) Fingerprint {
	small := image.NewGray(image.Rect(0, 0, hashGrid, hashGrid))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range small.Pix {
		sum += int(p)
	}
	mean := sum / (hashGrid * hashGrid)

	var fp Fingerprint
	for i, p := range small.Pix {
		if int(p) > mean {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// FingerprintFile loads and fingerprints an image file
func FingerprintFile(path string) (Fingerprint, error) {
	img, err := LoadImage(path)
	if err != nil {
		return 0, err
	}
	return FingerprintImage(img), nil
}

// Distance returns the Hamming distance between two fingerprints, the number
// of grid cells on which the two screens disagree. Range is 0..64.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// LoadImage decodes a PNG or JPEG image from disk. Decode failures wrap
// ErrDecode so callers can distinguish malformed artifacts from I/O errors.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return img, nil
}
