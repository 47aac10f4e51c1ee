package overlay

import (
	"fmt"

	"github.com/carbocation/ctlesion/volume"
)

type Coord struct {
	X, Y int
}

// Coord3 addresses a voxel as (Z, Y, X) in the canonical layout.
type Coord3 struct {
	Z, Y, X int
}

type ConnectedComponent struct {
	ComponentID uint32
	VoxelCount  int
	Bounds      struct {
		Min Coord3
		Max Coord3
	}
}

// Mask is a 3-D boolean grid with the same layout as volume.Volume.
type Mask struct {
	Depth, Height, Width int
	Data                 []bool
}

// NewMask allocates an empty mask.
func NewMask(depth, height, width int) *Mask {
	return &Mask{
		Depth:  depth,
		Height: height,
		Width:  width,
		Data:   make([]bool, depth*height*width),
	}
}

// NewMaskLike allocates an empty mask shaped like v.
func NewMaskLike(v *volume.Volume) *Mask {
	return NewMask(v.Depth, v.Height, v.Width)
}

func (m *Mask) Shape() [3]int {
	return [3]int{m.Depth, m.Height, m.Width}
}

func (m *Mask) Index(z, y, x int) int {
	return (z*m.Height+y)*m.Width + x
}

func (m *Mask) At(z, y, x int) bool {
	return m.Data[m.Index(z, y, x)]
}

func (m *Mask) Set(z, y, x int, v bool) {
	m.Data[m.Index(z, y, x)] = v
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}

	return n
}

// Bounds returns the inclusive bounding box of set voxels. ok is false for an
// empty mask.
func (m *Mask) Bounds() (min, max Coord3, ok bool) {
	min = Coord3{m.Depth, m.Height, m.Width}
	max = Coord3{-1, -1, -1}

	for i, v := range m.Data {
		if !v {
			continue
		}
		ok = true
		z, y, x := m.coords(i)
		min.Z, max.Z = minInt(min.Z, z), maxInt(max.Z, z)
		min.Y, max.Y = minInt(min.Y, y), maxInt(max.Y, y)
		min.X, max.X = minInt(min.X, x), maxInt(max.X, x)
	}

	return min, max, ok
}

// Plane cuts the mask the same way volume.Volume.Plane does.
func (m *Mask) Plane(axis volume.Axis, index int) (rows, cols int, data []bool) {
	switch axis {
	case volume.Sagittal:
		rows, cols = m.Depth, m.Width
		data = make([]bool, rows*cols)
		for z := 0; z < m.Depth; z++ {
			start := m.Index(z, index, 0)
			copy(data[z*cols:(z+1)*cols], m.Data[start:start+m.Width])
		}
	default:
		rows, cols = m.Height, m.Width
		data = make([]bool, rows*cols)
		start := m.Index(index, 0, 0)
		copy(data, m.Data[start:start+rows*cols])
	}

	return rows, cols, data
}

// AsVolume converts the mask into a 0/1 volume with the given spacing.
func (m *Mask) AsVolume(spacing [3]float64) (*volume.Volume, error) {
	v, err := volume.New(m.Depth, m.Height, m.Width, spacing)
	if err != nil {
		return nil, err
	}
	for i, set := range m.Data {
		if set {
			v.Data[i] = 1
		}
	}

	return v, nil
}

// CheckShape reports whether the mask can be overlaid on v.
func (m *Mask) CheckShape(v *volume.Volume) error {
	if m.Shape() != v.Shape() {
		return fmt.Errorf("mask shape %v does not match volume shape %v", m.Shape(), v.Shape())
	}

	return nil
}

func (m *Mask) coords(i int) (z, y, x int) {
	plane := m.Height * m.Width
	z = i / plane
	rem := i % plane

	return z, rem / m.Width, rem % m.Width
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
