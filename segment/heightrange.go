package segment

import (
	"math"

	"github.com/carbocation/ctlesion/annotation"
)

// SliceRange converts a sagittal height range in display millimetres into a
// half-open depth interval [top, bottom). Bounds are sorted and clipped to the
// volume; a degenerate range is widened to a single slice.
func SliceRange(hr annotation.HeightRange, depthSpacing float64, depth int) (top, bottom int) {
	top = toIndex(hr.Y0 / depthSpacing)
	bottom = toIndex(hr.Y1 / depthSpacing)

	if top > bottom {
		top, bottom = bottom, top
	}

	top = clampInt(top, 0, depth-1)
	bottom = clampInt(bottom, 0, depth-1)

	if top == bottom {
		bottom = top + 1
	}

	return top, bottom
}

// toIndex truncates toward zero like an integer cast would.
func toIndex(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
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
