package volume

import "fmt"

// Axis selects which volume axis a Slicer steps through.
type Axis int

const (
	// Axial planes are indexed over depth and span height x width.
	Axial Axis = iota

	// Sagittal planes are indexed over height and span depth x width.
	Sagittal
)

func (a Axis) String() string {
	switch a {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	}

	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts the names produced by Axis.String.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "axial", "z":
		return Axial, nil
	case "sagittal", "x":
		return Sagittal, nil
	}

	return 0, fmt.Errorf("unknown plane %q", s)
}

// Plane is a 2-D cut through a volume together with its physical pixel size.
type Plane struct {
	Rows, Cols int

	// RowSpacing and ColSpacing are in mm.
	RowSpacing, ColSpacing float64

	Data []float32
}

func (p Plane) At(r, c int) float32 {
	return p.Data[r*p.Cols+c]
}

// Slicer tracks the displayed index along one axis of a volume. Slicers are
// independent; moving one never affects another.
type Slicer struct {
	axis  Axis
	vol   *Volume
	index int
}

// NewSlicer binds a slicer to v and centers it.
func NewSlicer(v *Volume, axis Axis) *Slicer {
	s := &Slicer{axis: axis}
	s.Attach(v)

	return s
}

func (s *Slicer) Axis() Axis {
	return s.axis
}

func (s *Slicer) Index() int {
	return s.index
}

func (s *Slicer) Volume() *Volume {
	return s.vol
}

// Bounds returns the inclusive range of valid indices.
func (s *Slicer) Bounds() (lo, hi int) {
	return 0, s.extent() - 1
}

// Center is the index a slicer is reset to.
func (s *Slicer) Center() int {
	return s.extent() / 2
}

// SetIndex moves the slicer, clamping into Bounds, and returns the index that
// was applied.
func (s *Slicer) SetIndex(i int) int {
	lo, hi := s.Bounds()
	s.index = clamp(i, lo, hi)

	return s.index
}

// Attach re-binds the slicer to a new volume and recenters it.
func (s *Slicer) Attach(v *Volume) {
	s.vol = v
	s.index = s.Center()
}

// Plane extracts the 2-D plane at the current index.
func (s *Slicer) Plane() Plane {
	return s.vol.Plane(s.axis, s.index)
}

func (s *Slicer) extent() int {
	if s.vol == nil {
		return 0
	}

	return s.vol.Extent(s.axis)
}

// Extent is the number of planes along axis.
func (v *Volume) Extent(axis Axis) int {
	if axis == Sagittal {
		return v.Height
	}

	return v.Depth
}

// Plane extracts the plane at index along axis. The index must be in range.
func (v *Volume) Plane(axis Axis, index int) Plane {
	switch axis {
	case Sagittal:
		p := Plane{
			Rows:       v.Depth,
			Cols:       v.Width,
			RowSpacing: v.Spacing[0],
			ColSpacing: v.Spacing[2],
			Data:       make([]float32, v.Depth*v.Width),
		}
		for z := 0; z < v.Depth; z++ {
			copy(p.Data[z*v.Width:(z+1)*v.Width], v.Data[v.Index(z, index, 0):v.Index(z, index, 0)+v.Width])
		}
		return p
	default:
		p := Plane{
			Rows:       v.Height,
			Cols:       v.Width,
			RowSpacing: v.Spacing[1],
			ColSpacing: v.Spacing[2],
			Data:       make([]float32, v.Height*v.Width),
		}
		start := v.Index(index, 0, 0)
		copy(p.Data, v.Data[start:start+v.Height*v.Width])
		return p
	}
}
