package phash

import (
	"image"
	"image/color"
	"testing"
)

// checkerboard builds a deterministic test image so dhash computation
// is exercised against real pixel data rather than a blank canvas.
func checkerboard(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestComputeDeterministic(t *testing.T) {
	img := checkerboard(400, 300, 20)
	a := Compute(img)
	b := Compute(img)
	if !a.Equal(b) {
		t.Error("hashing the same bytes twice yielded different hashes")
	}
}

func TestDistanceSelfZero(t *testing.T) {
	img := checkerboard(128, 128, 8)
	h := Compute(img)
	if d := Distance(h, h); d != 0 {
		t.Errorf("Distance(h, h) = %d, want 0", d)
	}
}

func TestDistinctImagesDiffer(t *testing.T) {
	a := Compute(checkerboard(128, 128, 8))
	b := Compute(checkerboard(128, 128, 64))
	if Distance(a, b) == 0 {
		t.Error("visually distinct images produced an identical hash")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := Compute(checkerboard(64, 64, 4))
	h2, ok := FromBytes(h.Bytes())
	if !ok {
		t.Fatal("FromBytes rejected a valid 18-byte hash")
	}
	if !h.Equal(h2) {
		t.Error("FromBytes(h.Bytes()) != h")
	}
}

func TestFromBytesWrongLength(t *testing.T) {
	if _, ok := FromBytes([]byte{1, 2, 3}); ok {
		t.Error("FromBytes should reject non-18-byte input")
	}
}

func TestWithin(t *testing.T) {
	a := Compute(checkerboard(100, 100, 10))
	if !Within(a, a, 0) {
		t.Error("Within(a, a, 0) should be true")
	}
}
