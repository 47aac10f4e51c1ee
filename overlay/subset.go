package overlay

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	WhichPointBottomRight = "br"
	WhichPointTopLeft     = "tl"
)

// RescaleToAspect resizes a slice image so that one output pixel covers the
// same physical distance along both axes. The finer of the two spacings is
// kept at one pixel per sample; the coarser axis is stretched.
func RescaleToAspect(img image.Image, rowSpacing, colSpacing float64) image.Image {
	if rowSpacing <= 0 || colSpacing <= 0 || rowSpacing == colSpacing {
		return img
	}

	b := img.Bounds()
	unit := math.Min(rowSpacing, colSpacing)
	width := int(math.Round(float64(b.Dx()) * colSpacing / unit))
	height := int(math.Round(float64(b.Dy()) * rowSpacing / unit))

	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

// DilateDimension expands an axis by "dilationFactor" pixels (additive). It
// basically adds or subtracts pixels, while paying attention to not allow the
// position to leave [0, max].
func DilateDimension(pos, max, dilationFactor int, direction string) int {
	out := pos
	if direction == WhichPointBottomRight {
		out = out + dilationFactor
	} else {
		out = out - dilationFactor
	}

	if out < 0 {
		out = 0
	}
	if out > max {
		out = max
	}

	return out
}

// DilateBounds grows an inclusive voxel bounding box by dilation in every
// direction, staying inside a grid of the given shape.
func DilateBounds(min, max Coord3, shape [3]int, dilation int) (Coord3, Coord3) {
	return Coord3{
			Z: DilateDimension(min.Z, shape[0]-1, dilation, WhichPointTopLeft),
			Y: DilateDimension(min.Y, shape[1]-1, dilation, WhichPointTopLeft),
			X: DilateDimension(min.X, shape[2]-1, dilation, WhichPointTopLeft),
		}, Coord3{
			Z: DilateDimension(max.Z, shape[0]-1, dilation, WhichPointBottomRight),
			Y: DilateDimension(max.Y, shape[1]-1, dilation, WhichPointBottomRight),
			X: DilateDimension(max.X, shape[2]-1, dilation, WhichPointBottomRight),
		}
}
