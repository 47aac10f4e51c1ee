// Package mesh extracts isosurfaces from volumes and lesion masks for the 3-D
// view.
package mesh

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/model3d/model3d"

	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/volume"
)

const (
	// OverviewLevel is the HU isosurface of the orientation mesh (bone).
	OverviewLevel = 200
	OverviewStep  = 5

	LesionStep = 3

	// Bisection steps used to place each vertex on the surface.
	searchIters = 8
)

// LesionSmoothing is applied to the 0/1 lesion field before extraction.
var LesionSmoothing = volume.Footprint{Z: 1, Y: 7, X: 7}

// Result is an extracted surface. When Absent is true Mesh is nil and Reason
// says why; callers show a placeholder.
type Result struct {
	Mesh   *model3d.Mesh
	Absent bool
	Reason string
}

func absent(reason string) Result {
	return Result{Absent: true, Reason: reason}
}

// Extractor builds meshes. The zero value is usable.
type Extractor struct {
	Log     logrus.FieldLogger
	Workers int
}

func (e *Extractor) log() logrus.FieldLogger {
	if e == nil || e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// FromVolume extracts the isosurface of the smoothed volume at level. step is
// the marching cubes cell size in voxels.
func (e *Extractor) FromVolume(smoothed *volume.Volume, level float64, step int) Result {
	if smoothed == nil || smoothed.Len() == 0 {
		return absent("no volume")
	}

	sum := smoothed.Summary()
	if !(sum.Min <= level && level < sum.Max) {
		return absent(fmt.Sprintf("level %g outside intensity range [%g, %g]", level, sum.Min, sum.Max))
	}

	lo := overlay.Coord3{}
	hi := overlay.Coord3{Z: smoothed.Depth - 1, Y: smoothed.Height - 1, X: smoothed.Width - 1}

	return e.extract(newFieldSolid(smoothed, level, lo, hi), cellSize(smoothed.Spacing, step))
}

// FromMask smooths the lesion mask with footprint and extracts its 0.5
// boundary. Work is restricted to the mask's bounding box grown by the
// footprint radius.
func (e *Extractor) FromMask(ctx context.Context, m *overlay.Mask, spacing [3]float64, step int, footprint volume.Footprint) Result {
	if m == nil {
		return absent("no mask")
	}

	min, max, ok := m.Bounds()
	if !ok {
		return absent("empty mask")
	}

	pad := maxInt(footprint.Z, maxInt(footprint.Y, footprint.X))/2 + 1
	min, max = overlay.DilateBounds(min, max, m.Shape(), pad)

	field, err := crop(m, min, max, spacing)
	if err != nil {
		return absent(err.Error())
	}

	smoothed, err := volume.MedianFilter(ctx, field, footprint, e.Workers)
	if err != nil {
		return absent(err.Error())
	}

	// The cropped field starts at the origin; shift vertices back afterwards.
	lo := overlay.Coord3{}
	hi := overlay.Coord3{Z: smoothed.Depth - 1, Y: smoothed.Height - 1, X: smoothed.Width - 1}

	res := e.extract(newFieldSolid(smoothed, 0.5, lo, hi), cellSize(spacing, step))
	if res.Absent {
		return res
	}

	offset := model3d.XYZ(float64(min.X)*spacing[2], float64(min.Y)*spacing[1], float64(min.Z)*spacing[0])
	res.Mesh = res.Mesh.Translate(offset)

	return res
}

func (e *Extractor) extract(solid model3d.Solid, delta float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log().WithField("panic", r).Error("isosurface extraction failed")
			res = absent(fmt.Sprint("extraction failed: ", r))
		}
	}()

	m := model3d.MarchingCubesSearch(solid, delta, searchIters)
	if m == nil || len(m.TriangleSlice()) == 0 {
		return absent("no surface")
	}

	e.log().WithFields(logrus.Fields{
		"triangles": len(m.TriangleSlice()),
		"delta_mm":  delta,
	}).Debug("extracted isosurface")

	return Result{Mesh: m}
}

// crop copies the mask region [min, max] into a 0/1 volume.
func crop(m *overlay.Mask, min, max overlay.Coord3, spacing [3]float64) (*volume.Volume, error) {
	v, err := volume.New(max.Z-min.Z+1, max.Y-min.Y+1, max.X-min.X+1, spacing)
	if err != nil {
		return nil, err
	}

	for z := min.Z; z <= max.Z; z++ {
		for y := min.Y; y <= max.Y; y++ {
			for x := min.X; x <= max.X; x++ {
				if m.At(z, y, x) {
					v.Set(z-min.Z, y-min.Y, x-min.X, 1)
				}
			}
		}
	}

	return v, nil
}

// cellSize converts a step in voxels into mm using the finest spacing.
func cellSize(spacing [3]float64, step int) float64 {
	if step < 1 {
		step = 1
	}
	return float64(step) * math.Min(spacing[0], math.Min(spacing[1], spacing[2]))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
