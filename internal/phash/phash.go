// Package phash computes the difference-hash (dhash) perceptual
// fingerprint used throughout the index: a 13x12 grayscale resample
// whose pixels are each compared against their right-hand neighbor
// (12x12 comparisons), packed into 18 bytes.
// The width (144 bits) is part of the on-disk contract (§4.1, §9 of
// the design notes) and must never change without a backfill.
package phash

import (
	"bytes"
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

const (
	// hashCols/hashRows are the resample dimensions. hashCols is one wider
	// than hashRows so each row yields exactly hashRows horizontal-neighbor
	// comparisons (12x12 -> 144 bits).
	hashCols = 13
	hashRows = 12

	// Size is the packed byte width of a Hash (144 bits).
	Size = 18
)

// Hash is a packed 144-bit dhash.
type Hash [Size]byte

// Compute decodes img, resamples it to 13x12 grayscale with a
// high-quality antialiasing filter, and returns its dhash.
func Compute(img image.Image) Hash {
	gray := image.NewGray(image.Rect(0, 0, hashCols, hashRows))
	draw.CatmullRom.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Over, nil)

	var h Hash
	bitIndex := 0
	for y := 0; y < hashRows; y++ {
		for x := 0; x < hashCols-1; x++ {
			left := luma(gray, x, y)
			right := luma(gray, x+1, y)
			if left < right {
				byteIdx := bitIndex / 8
				bitOff := uint(bitIndex % 8)
				h[byteIdx] |= 1 << bitOff
			}
			bitIndex++
		}
	}
	return h
}

func luma(g *image.Gray, x, y int) uint8 {
	c := g.GrayAt(x, y)
	return c.Y
}

// Distance returns the Hamming distance between two hashes: the number
// of differing bits.
func Distance(a, b Hash) int {
	d := 0
	for i := 0; i < Size; i++ {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// Within reports whether a and b are within Hamming distance d of each
// other (d is assumed already clamped by the caller).
func Within(a, b Hash, d int) bool {
	return Distance(a, b) <= d
}

// Bytes returns the packed representation (raw 18-byte binary, §6).
func (h Hash) Bytes() []byte { return h[:] }

// FromBytes decodes a packed 18-byte dhash. Returns an error via ok=false
// if b is not exactly Size bytes.
func FromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != Size {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// Equal reports whether two hashes are bit-identical.
func (h Hash) Equal(o Hash) bool {
	return bytes.Equal(h[:], o[:])
}
