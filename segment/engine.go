package segment

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/annotation"
	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/volume"
)

// ErrNoROI means the annotation is incomplete or selects no voxels. It marks
// an absent result, not a failure.
var ErrNoROI = errors.New("no region of interest")

// Absence reasons reported on a Result without a mask.
const (
	AbsentNoVolume     = "no volume loaded"
	AbsentIncomplete   = "annotation incomplete"
	AbsentEmptyPolygon = "contour covers no pixels"
	AbsentNoCandidates = "no voxels within the intensity range"
	AbsentNoComponent  = "no connected component"
	AbsentInternal     = "segmentation failed"
)

// Threshold is an intensity window in HU. Voxels with Min < v <= Max are
// candidates.
type Threshold struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Sorted returns the threshold with Min <= Max.
func (t Threshold) Sorted() Threshold {
	if t.Min > t.Max {
		t.Min, t.Max = t.Max, t.Min
	}
	return t
}

func (t Threshold) Contains(v float64) bool {
	return v > t.Min && v <= t.Max
}

// Region is the annotated prism: an in-plane polygon mask repeated over the
// depth interval [Top, Bottom).
type Region struct {
	Rows, Cols  int
	Polygon     []bool
	Top, Bottom int
}

// Slices is the number of depth indices in the prism.
func (r Region) Slices() int {
	return r.Bottom - r.Top
}

// Area is the number of in-plane pixels inside the polygon.
func (r Region) Area() int {
	n := 0
	for _, v := range r.Polygon {
		if v {
			n++
		}
	}
	return n
}

// Moments describes the largest axial cross-section of a lesion in mm.
type Moments struct {
	Slice       int     `json:"slice"`
	AreaMM2     float64 `json:"area_mm2"`
	LongAxisMM  float64 `json:"long_axis_mm"`
	ShortAxisMM float64 `json:"short_axis_mm"`
}

// Result is the outcome of one segmentation pass. Mask is nil whenever
// Absence is set.
type Result struct {
	Mask    *overlay.Mask
	Absence string

	VoxelCount int
	VolumeMM3  float64

	// Top and Bottom bound the annotated depth interval [Top, Bottom).
	Top, Bottom int
	Threshold   Threshold
	Impression  string
	Moments     *Moments
}

// Absent reports whether the result carries no mask.
func (r Result) Absent() bool {
	return r.Mask == nil
}

// VolumeML is the lesion volume in millilitres.
func (r Result) VolumeML() float64 {
	return r.VolumeMM3 / 1000
}

// SliceCount is the number of axial slices the lesion touches.
func (r Result) SliceCount() int {
	if r.Mask == nil {
		return 0
	}
	min, max, ok := r.Mask.Bounds()
	if !ok {
		return 0
	}
	return max.Z - min.Z + 1
}

// Engine turns an annotation and threshold into a lesion mask.
type Engine struct {
	Log logrus.FieldLogger
}

func (e *Engine) log() logrus.FieldLogger {
	if e == nil || e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Region builds the annotated prism on the axial plane of v.
func (e *Engine) Region(v *volume.Volume, contour []annotation.Point, hr annotation.HeightRange) (Region, error) {
	if v == nil {
		return Region{}, ErrNoROI
	}

	sz, sy, sx := v.Spacing[0], v.Spacing[1], v.Spacing[2]

	pixels := ToPixels(e.log(), contour, v.Height, v.Width, sy, sx)
	poly := Rasterize(pixels, v.Height, v.Width)
	if poly == nil {
		return Region{}, fmt.Errorf("%w: %s", ErrNoROI, AbsentEmptyPolygon)
	}

	top, bottom := SliceRange(hr, sz, v.Depth)

	return Region{
		Rows:    v.Height,
		Cols:    v.Width,
		Polygon: poly,
		Top:     top,
		Bottom:  bottom,
	}, nil
}

// Segment runs the full pipeline on the smoothed volume. It never panics; any
// degenerate input yields a Result with an Absence reason.
func (e *Engine) Segment(smoothed *volume.Volume, store *annotation.Store, th Threshold) (res Result) {
	th = th.Sorted()
	res.Threshold = th
	res.Impression = Impression(th)

	defer func() {
		if r := recover(); r != nil {
			e.log().WithField("panic", r).Error("segmentation aborted")
			res = Result{Threshold: th, Impression: res.Impression, Absence: AbsentInternal}
		}
	}()

	if smoothed == nil {
		res.Absence = AbsentNoVolume
		return res
	}
	if store == nil || !store.Complete() {
		res.Absence = AbsentIncomplete
		return res
	}

	hr, _ := store.HeightRange()
	region, err := e.Region(smoothed, store.Contour(), hr)
	if err != nil {
		res.Absence = AbsentEmptyPolygon
		return res
	}
	res.Top, res.Bottom = region.Top, region.Bottom

	candidates := Candidates(smoothed, region, th)
	if candidates.Count() == 0 {
		res.Absence = AbsentNoCandidates
		return res
	}

	largest, cc := overlay.LargestComponent(candidates)
	if largest == nil {
		res.Absence = AbsentNoComponent
		return res
	}

	res.Mask = largest
	res.VoxelCount = cc.VoxelCount
	res.VolumeMM3 = float64(cc.VoxelCount) * smoothed.VoxelVolume()
	res.Moments = crossSection(largest, smoothed.Spacing)

	e.log().WithFields(logrus.Fields{
		"voxels":    res.VoxelCount,
		"volume_ml": fmt.Sprintf("%.2f", res.VolumeML()),
		"top":       res.Top,
		"bottom":    res.Bottom,
		"min":       th.Min,
		"max":       th.Max,
	}).Info("segmented lesion")

	return res
}

// Candidates marks every voxel inside the prism whose intensity falls within
// the threshold.
func Candidates(v *volume.Volume, region Region, th Threshold) *overlay.Mask {
	th = th.Sorted()
	m := overlay.NewMaskLike(v)

	for z := region.Top; z < region.Bottom && z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				if !region.Polygon[y*v.Width+x] {
					continue
				}
				if th.Contains(float64(v.At(z, y, x))) {
					m.Set(z, y, x, true)
				}
			}
		}
	}

	return m
}

func crossSection(m *overlay.Mask, spacing [3]float64) *Moments {
	z, _ := m.LargestAxialSlice()
	if z < 0 {
		return nil
	}

	mom, err := m.ComputeMoments(z)
	if err != nil {
		return nil
	}

	sy, sx := spacing[1], spacing[2]
	inPlane := math.Sqrt(sy * sx)

	return &Moments{
		Slice:       z,
		AreaMM2:     mom.Area * sy * sx,
		LongAxisMM:  mom.LongAxisPixels * inPlane,
		ShortAxisMM: mom.ShortAxisPixels * inPlane,
	}
}
