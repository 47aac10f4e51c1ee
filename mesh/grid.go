package mesh

import (
	"math"

	"github.com/unixpickle/model3d/model3d"

	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/volume"
)

// fieldSolid exposes a scalar volume as a model3d.Solid: a point is inside
// when the trilinearly interpolated intensity exceeds Level. Coordinates are
// in mm with X along width, Y along height and Z along depth.
type fieldSolid struct {
	vol   *volume.Volume
	level float64

	// inclusive voxel bounds that the surface is searched in
	lo, hi overlay.Coord3
}

func newFieldSolid(v *volume.Volume, level float64, lo, hi overlay.Coord3) *fieldSolid {
	return &fieldSolid{vol: v, level: level, lo: lo, hi: hi}
}

// Min and Max pad the bounds by one voxel so surfaces touching the edge of
// the volume are closed.
func (f *fieldSolid) Min() model3d.Coord3D {
	sz, sy, sx := f.vol.Spacing[0], f.vol.Spacing[1], f.vol.Spacing[2]
	return model3d.XYZ(
		float64(f.lo.X-1)*sx,
		float64(f.lo.Y-1)*sy,
		float64(f.lo.Z-1)*sz,
	)
}

func (f *fieldSolid) Max() model3d.Coord3D {
	sz, sy, sx := f.vol.Spacing[0], f.vol.Spacing[1], f.vol.Spacing[2]
	return model3d.XYZ(
		float64(f.hi.X+1)*sx,
		float64(f.hi.Y+1)*sy,
		float64(f.hi.Z+1)*sz,
	)
}

func (f *fieldSolid) Contains(c model3d.Coord3D) bool {
	sz, sy, sx := f.vol.Spacing[0], f.vol.Spacing[1], f.vol.Spacing[2]
	return f.sample(c.Z/sz, c.Y/sy, c.X/sx) > f.level
}

// sample interpolates at a fractional voxel index. Anything outside the
// search bounds reads as -Inf.
func (f *fieldSolid) sample(z, y, x float64) float64 {
	if z < float64(f.lo.Z) || z > float64(f.hi.Z) ||
		y < float64(f.lo.Y) || y > float64(f.hi.Y) ||
		x < float64(f.lo.X) || x > float64(f.hi.X) {
		return math.Inf(-1)
	}

	z0, y0, x0 := int(z), int(y), int(x)
	z1, y1, x1 := minInt(z0+1, f.hi.Z), minInt(y0+1, f.hi.Y), minInt(x0+1, f.hi.X)
	dz, dy, dx := z-float64(z0), y-float64(y0), x-float64(x0)

	at := func(zz, yy, xx int) float64 {
		return float64(f.vol.At(zz, yy, xx))
	}

	c00 := lerp(at(z0, y0, x0), at(z0, y0, x1), dx)
	c01 := lerp(at(z0, y1, x0), at(z0, y1, x1), dx)
	c10 := lerp(at(z1, y0, x0), at(z1, y0, x1), dx)
	c11 := lerp(at(z1, y1, x0), at(z1, y1, x1), dx)

	return lerp(lerp(c00, c01, dy), lerp(c10, c11, dy), dz)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
