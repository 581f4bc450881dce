package preprocess

import (
	"image"
	"image/color"
	"testing"
)

// TestAdaptiveThresholdSumsFullWindow builds a 5x5 image whose window around
// (2,2) has nine cells: the top row and left column of that window are
// bright (255), the remaining four cells are dark except the center pixel
// itself, which is set to a value that falls strictly between the true
// 9-cell window mean and what a window missing its top row and left column
// would compute. This pins down that the summed-area-table lookup covers the
// window's full rows/cols instead of silently excluding its first row and
// column while still dividing by the full window size.
func TestAdaptiveThresholdSumsFullWindow(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	set := func(x, y int, v uint8) { img.SetGray(x, y, color.Gray{Y: v}) }

	set(1, 1, 255)
	set(2, 1, 255)
	set(3, 1, 255)
	set(1, 2, 255)
	set(1, 3, 255)
	set(2, 2, 100) // the pixel under test

	out := adaptiveThreshold(img, 3, 0)

	// True 3x3 window mean around (2,2) is (1275+100)/9 = 152; 100 < 152
	// so the pixel must threshold black.
	r, _, _, _ := out.At(2, 2).RGBA()
	if r>>8 != 0 {
		t.Fatalf("expected pixel (2,2) to threshold black (mean=152, pix=100), got gray=%d", r>>8)
	}
}

func TestEstimateContrastFlatImageIsZero(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	if q := estimateContrast(img); q != 0 {
		t.Fatalf("expected 0 contrast for a flat image, got %v", q)
	}
}
