package overlay

import (
	"github.com/theodesp/unionfind"
)

// Two-pass connected component labeling, following the guide at
// http://aishack.in/tutorials/connected-component-labelling/ but extended to
// three dimensions with 26-connectivity (faces, edges and corners touch).

// backward holds the 13 neighbor offsets (dz, dy, dx) that precede a voxel in
// scan order; the other 13 are visited later and see this voxel instead.
var backward = func() [][3]int {
	out := make([][3]int, 0, 13)
	for dz := -1; dz <= 0; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dz == 0 && (dy > 0 || (dy == 0 && dx >= 0)) {
					continue
				}
				out = append(out, [3]int{dz, dy, dx})
			}
		}
	}
	return out
}()

// Connected is the labeled form of a mask.
type Connected struct {
	mask *Mask

	// Labels holds the component ID of each voxel (0 for background).
	// Component IDs are dense, starting at 1, in order of first appearance.
	Labels []uint32

	Components []ConnectedComponent
}

// LabelComponents finds the 26-connected components of m.
func LabelComponents(m *Mask) *Connected {
	c := &Connected{mask: m, Labels: make([]uint32, len(m.Data))}

	// Provisional labels never exceed the number of foreground voxels
	uf := unionfind.New(m.Count() + 2)

	var nextLabel uint32 = 1
	for z := 0; z < m.Depth; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				i := m.Index(z, y, x)
				if !m.Data[i] {
					continue
				}

				// Adopt the smallest label among already-visited neighbors,
				// and remember that all of them are the same component.
				var label uint32
				for _, off := range backward {
					n, ok := c.neighbor(z+off[0], y+off[1], x+off[2])
					if !ok {
						continue
					}
					if label == 0 {
						label = n
						continue
					}
					if n != label {
						uf.Union(int(label), int(n))
						if n < label {
							label = n
						}
					}
				}

				// If not, it gets its own label
				if label == 0 {
					label = nextLabel
					nextLabel++
				}
				c.Labels[i] = label
			}
		}
	}

	// Reconcile equivalent labels into dense component IDs
	dense := make(map[int]uint32)
	for i, v := range c.Labels {
		if v == 0 {
			continue
		}

		root := uf.Root(int(v))
		if root < 0 {
			root = int(v)
		}

		id, exists := dense[root]
		if !exists {
			id = uint32(len(c.Components) + 1)
			dense[root] = id

			cc := ConnectedComponent{ComponentID: id}
			cc.Bounds.Min = Coord3{m.Depth, m.Height, m.Width}
			cc.Bounds.Max = Coord3{-1, -1, -1}
			c.Components = append(c.Components, cc)
		}
		c.Labels[i] = id

		cc := &c.Components[id-1]
		cc.VoxelCount++
		z, y, x := m.coords(i)
		cc.Bounds.Min = Coord3{minInt(cc.Bounds.Min.Z, z), minInt(cc.Bounds.Min.Y, y), minInt(cc.Bounds.Min.X, x)}
		cc.Bounds.Max = Coord3{maxInt(cc.Bounds.Max.Z, z), maxInt(cc.Bounds.Max.Y, y), maxInt(cc.Bounds.Max.X, x)}
	}

	return c
}

func (c *Connected) neighbor(z, y, x int) (uint32, bool) {
	m := c.mask
	if z < 0 || y < 0 || x < 0 || z >= m.Depth || y >= m.Height || x >= m.Width {
		return 0, false
	}

	v := c.Labels[m.Index(z, y, x)]

	return v, v != 0
}

// Largest returns the component with the most voxels. Ties go to the
// component seen first in scan order. ok is false when there is no
// foreground.
func (c *Connected) Largest() (ConnectedComponent, bool) {
	if len(c.Components) == 0 {
		return ConnectedComponent{}, false
	}

	best := c.Components[0]
	for _, cc := range c.Components[1:] {
		if cc.VoxelCount > best.VoxelCount {
			best = cc
		}
	}

	return best, true
}

// Extract returns a mask containing only the given component.
func (c *Connected) Extract(component ConnectedComponent) *Mask {
	out := NewMask(c.mask.Depth, c.mask.Height, c.mask.Width)
	for i, v := range c.Labels {
		if v == component.ComponentID {
			out.Data[i] = true
		}
	}

	return out
}

// LargestComponent keeps only the largest 26-connected component of m. It
// returns nil when m has no foreground.
func LargestComponent(m *Mask) (*Mask, ConnectedComponent) {
	conn := LabelComponents(m)

	largest, ok := conn.Largest()
	if !ok {
		return nil, ConnectedComponent{}
	}

	return conn.Extract(largest), largest
}
