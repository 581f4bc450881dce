// Package preprocess prepares a scanned or photographed document image for
// OCR: grayscale, contrast, adaptive thresholding and light dilation to
// close broken character strokes. It is the PREPROCESS stage's external
// collaborator (spec §4.8/§1) and reports a rough quality estimate the
// orchestrator folds into its warnings.
//
// Grounded on fardilk-fekeu/pkg/ocr/preprocess.go and the grayscale/contrast
// chain in passes.go, generalized from "produce one tuned variant for
// amount OCR" to "produce one clean variant plus a quality signal for any
// document".
package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Processor preprocesses document images in place using imaging's pure-Go
// image pipeline.
type Processor struct {
	// MinHeight is the height images are upscaled to when they are more
	// than 400px shorter than it, per fardilk-fekeu's heuristic that small
	// scans OCR poorly below ~1000px.
	MinHeight int
	// AdaptiveWindow is the adaptive-threshold window size in pixels.
	AdaptiveWindow int
	// AdaptiveBias is subtracted from the local mean threshold; higher values
	// turn fewer pixels black.
	AdaptiveBias int
}

// NewProcessor returns a Processor configured with fardilk-fekeu's defaults.
func NewProcessor() *Processor {
	return &Processor{MinHeight: 1300, AdaptiveWindow: 15, AdaptiveBias: 7}
}

// Preprocess loads the image at imageIdentifier, cleans it up, overwrites it
// in place, and returns an estimate in [0,1] of how much usable contrast the
// source image had before cleanup (low values mean the OCR stage should
// expect a noisy result).
func (p *Processor) Preprocess(imageIdentifier string) (float64, error) {
	img, err := imaging.Open(imageIdentifier)
	if err != nil {
		return 0, err
	}

	gray := imaging.Grayscale(img)
	quality := estimateContrast(gray)

	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < p.MinHeight-400 {
		gray = imaging.Resize(gray, 0, p.MinHeight, imaging.Lanczos)
	}

	adv := adaptiveThreshold(gray, p.AdaptiveWindow, p.AdaptiveBias)
	adv = dilate(adv, 1)

	if err := imaging.Save(adv, imageIdentifier); err != nil {
		return quality, err
	}
	return quality, nil
}

// estimateContrast returns a normalized standard deviation of pixel
// intensity: near 0 for a flat/washed-out scan, near 1 for a well-lit
// high-contrast page.
func estimateContrast(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	sum, sumSq := 0.0, 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			v := float64(r >> 8)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)
	// A stddev of ~80 or more on a 0-255 scale is a sharply contrasted page;
	// normalize against that ceiling.
	q := stddev / 80
	if q > 1 {
		q = 1
	}
	return q
}

// adaptiveThreshold performs a mean adaptive threshold using a summed-area
// table so the per-pixel window mean is O(1) after an O(n) pass.
func adaptiveThreshold(img image.Image, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			v := int((r + g + b) / 3 >> 8)
			rowSum += v
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	// prefix returns the inclusive sum over [0,x]x[0,y], treating any
	// out-of-range coordinate (x<0 or y<0) as an empty region.
	prefix := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return ints[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := clampInt(x-half, 0, w-1), clampInt(y-half, 0, h-1)
			x1, y1 := clampInt(x+half, 0, w-1), clampInt(y+half, 0, h-1)
			sum := prefix(x1, y1) - prefix(x0-1, y1) - prefix(x1, y0-1) + prefix(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			rv, gv, bv, _ := img.At(x, y).RGBA()
			pix := int((rv + gv + bv) / 3 >> 8)
			th := mean - bias
			if th < 0 {
				th = 0
			}
			px := color.NRGBA{255, 255, 255, 255}
			if pix < th {
				px = color.NRGBA{0, 0, 0, 255}
			}
			out.Set(x, y, px)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dilate performs 4-neighborhood dilation, radius times, closing broken
// character strokes left by adaptive thresholding.
func dilate(img *image.NRGBA, radius int) *image.NRGBA {
	if radius <= 0 {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := img
	neighbors := [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for r := 0; r < radius; r++ {
		next := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				black := false
				for _, d := range neighbors {
					x2, y2 := x+d[0], y+d[1]
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					rv, gv, bv, _ := cur.At(x2, y2).RGBA()
					if rv+gv+bv == 0 {
						black = true
						break
					}
				}
				if black {
					next.Set(x, y, color.NRGBA{0, 0, 0, 255})
				}
			}
		}
		cur = next
	}
	return cur
}
