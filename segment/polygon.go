package segment

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/annotation"
)

// ToPixels converts a contour in display millimetres to (col, row) pixel
// coordinates, clipping every vertex into the plane. Clipped vertices are
// logged rather than rejected.
func ToPixels(log logrus.FieldLogger, contour []annotation.Point, rows, cols int, rowSpacing, colSpacing float64) []annotation.Point {
	out := make([]annotation.Point, 0, len(contour))
	clipped := 0

	for _, p := range contour {
		col := p.X / colSpacing
		row := p.Y / rowSpacing

		c, cOK := clipFloat(col, float64(cols-1))
		r, rOK := clipFloat(row, float64(rows-1))
		if !cOK || !rOK {
			clipped++
		}

		out = append(out, annotation.Point{X: c, Y: r})
	}

	if clipped > 0 && log != nil {
		log.WithFields(logrus.Fields{
			"clipped":  clipped,
			"vertices": len(contour),
			"rows":     rows,
			"cols":     cols,
		}).Warn("contour extends past the axial plane; vertices clipped")
	}

	return out
}

// Rasterize fills the polygon over a rows x cols plane with gg's antialiased
// filler. A pixel is inside when at least half of it is covered. Enclosed
// holes are filled. The result is nil when the
// polygon covers no pixel.
func Rasterize(pixels []annotation.Point, rows, cols int) []bool {
	if len(pixels) < 3 || rows < 1 || cols < 1 {
		return nil
	}

	dc := gg.NewContext(cols, rows)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	// Pixel (r, c) covers [c, c+1) x [r, r+1) in canvas units; vertices are
	// shifted by half a pixel so index (c, r) lands mid-pixel.
	for i, p := range pixels {
		if i == 0 {
			dc.MoveTo(p.X+0.5, p.Y+0.5)
			continue
		}
		dc.LineTo(p.X+0.5, p.Y+0.5)
	}
	dc.ClosePath()
	dc.SetRGB(1, 1, 1)
	dc.Fill()

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil
	}

	plane := make([]bool, rows*cols)
	covered := false
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			// Alpha is the covered fraction of the pixel.
			if img.RGBAAt(c, r).A >= 128 {
				plane[r*cols+c] = true
				covered = true
			}
		}
	}

	// A polygon collapsed onto the border by clipping covers no pixel by half.
	if !covered {
		return nil
	}

	fillHoles(plane, rows, cols)

	return plane
}

// fillHoles sets every background pixel that cannot reach the border through
// 4-connected background.
func fillHoles(plane []bool, rows, cols int) {
	outside := make([]bool, len(plane))
	queue := make([]int, 0, 2*(rows+cols))

	push := func(r, c int) {
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return
		}
		i := r*cols + c
		if plane[i] || outside[i] {
			return
		}
		outside[i] = true
		queue = append(queue, i)
	}

	for c := 0; c < cols; c++ {
		push(0, c)
		push(rows-1, c)
	}
	for r := 0; r < rows; r++ {
		push(r, 0)
		push(r, cols-1)
	}

	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		r, c := i/cols, i%cols
		push(r-1, c)
		push(r+1, c)
		push(r, c-1)
		push(r, c+1)
	}

	for i := range plane {
		if !plane[i] && !outside[i] {
			plane[i] = true
		}
	}
}

func clipFloat(v, max float64) (float64, bool) {
	if math.IsNaN(v) || v < 0 {
		return 0, false
	}
	if v > max {
		return max, false
	}
	return v, true
}
