package volume

import (
	"image"
	"math"
)

// Window maps Hounsfield units onto display grey levels.
type Window struct {
	Level, Width float64
}

// BrainWindow is the conventional window for intracranial soft tissue.
var BrainWindow = Window{Level: 40, Width: 80}

// Gray renders HU value v to an 8-bit grey level.
func (w Window) Gray(v float64) uint8 {
	lo := w.Level - w.Width/2
	frac := (v - lo) / w.Width

	if math.IsNaN(frac) || frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return math.MaxUint8
	}

	return uint8(math.Round(frac * math.MaxUint8))
}

// Image renders the plane in pixel space, one pixel per sample, row 0 at the
// top.
func (p Plane) Image(w Window) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))

	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			img.Pix[r*img.Stride+c] = w.Gray(float64(p.At(r, c)))
		}
	}

	return img
}
