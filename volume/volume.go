// Package volume holds CT volumes in a canonical (depth, height, width)
// layout, along with loading, smoothing and planar slicing.
package volume

import (
	"fmt"
	"math"

	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/floats"
)

// Volume is a dense 3-D grid of Hounsfield unit samples. Data is stored with
// depth as the slowest axis and width as the fastest. A Volume is treated as
// immutable once built; processing steps return new volumes.
type Volume struct {
	Depth, Height, Width int

	// Spacing is the physical voxel size in mm, ordered (sz, sy, sx).
	Spacing [3]float64

	Data []float32
}

// New allocates a zero-filled volume.
func New(depth, height, width int, spacing [3]float64) (*Volume, error) {
	if depth <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", depth, height, width)
	}
	for i, s := range spacing {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("spacing[%d]=%g must be positive and finite", i, s)
		}
	}

	return &Volume{
		Depth:   depth,
		Height:  height,
		Width:   width,
		Spacing: spacing,
		Data:    make([]float32, depth*height*width),
	}, nil
}

// Shape returns (depth, height, width).
func (v *Volume) Shape() [3]int {
	return [3]int{v.Depth, v.Height, v.Width}
}

func (v *Volume) Len() int {
	return v.Depth * v.Height * v.Width
}

func (v *Volume) Index(z, y, x int) int {
	return (z*v.Height+y)*v.Width + x
}

func (v *Volume) At(z, y, x int) float32 {
	return v.Data[v.Index(z, y, x)]
}

func (v *Volume) Set(z, y, x int, val float32) {
	v.Data[v.Index(z, y, x)] = val
}

// InBounds reports whether (z, y, x) addresses a voxel.
func (v *Volume) InBounds(z, y, x int) bool {
	return z >= 0 && z < v.Depth && y >= 0 && y < v.Height && x >= 0 && x < v.Width
}

// VoxelVolume is the physical volume of a single voxel in mm³.
func (v *Volume) VoxelVolume() float64 {
	return v.Spacing[0] * v.Spacing[1] * v.Spacing[2]
}

// EmptyLike allocates a zero-filled volume with the same geometry.
func (v *Volume) EmptyLike() *Volume {
	return &Volume{
		Depth:   v.Depth,
		Height:  v.Height,
		Width:   v.Width,
		Spacing: v.Spacing,
		Data:    make([]float32, len(v.Data)),
	}
}

// SameGeometry reports whether two volumes share shape and spacing.
func (v *Volume) SameGeometry(o *Volume) bool {
	return o != nil && v.Shape() == o.Shape() && v.Spacing == o.Spacing
}

type Summary struct {
	Min, Max, Mean float64
	SD             float64
}

// Summary reports intensity statistics over the whole volume. Slices are
// reduced one at a time to bound the float64 scratch space.
func (v *Volume) Summary() Summary {
	out := Summary{Min: math.Inf(1), Max: math.Inf(-1)}

	plane := v.Height * v.Width
	scratch := make([]float64, plane)
	var sum float64
	rs := runningvariance.NewRunningStat()

	for z := 0; z < v.Depth; z++ {
		for i, val := range v.Data[z*plane : (z+1)*plane] {
			scratch[i] = float64(val)
			rs.Push(scratch[i])
		}

		out.Min = math.Min(out.Min, floats.Min(scratch))
		out.Max = math.Max(out.Max, floats.Max(scratch))
		sum += floats.Sum(scratch)
	}

	out.Mean = sum / float64(v.Len())
	out.SD = rs.StandardDeviation()

	return out
}
