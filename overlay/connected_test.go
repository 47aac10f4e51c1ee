package overlay

import (
	"testing"
)

func fillBox(m *Mask, min, max Coord3) {
	for z := min.Z; z <= max.Z; z++ {
		for y := min.Y; y <= max.Y; y++ {
			for x := min.X; x <= max.X; x++ {
				m.Set(z, y, x, true)
			}
		}
	}
}

func TestLargestComponentKeepsBiggerBlob(t *testing.T) {
	m := NewMask(6, 20, 20)

	// 10 voxels
	fillBox(m, Coord3{0, 0, 0}, Coord3{0, 1, 4})
	// 50 voxels, far from the first
	fillBox(m, Coord3{1, 10, 10}, Coord3{2, 14, 14})

	largest, cc := LargestComponent(m)
	if largest == nil {
		t.Fatal("expected a component")
	}
	if cc.VoxelCount != 50 || largest.Count() != 50 {
		t.Errorf("got %d voxels (mask %d), want 50", cc.VoxelCount, largest.Count())
	}
	if largest.At(0, 0, 0) {
		t.Error("the smaller component should be dropped")
	}
	if cc.Bounds.Min != (Coord3{1, 10, 10}) || cc.Bounds.Max != (Coord3{2, 14, 14}) {
		t.Errorf("bounds: got %+v", cc.Bounds)
	}
}

func TestLabelUsesCornerConnectivity(t *testing.T) {
	m := NewMask(2, 2, 2)
	m.Set(0, 0, 0, true)
	m.Set(1, 1, 1, true)

	conn := LabelComponents(m)
	if len(conn.Components) != 1 {
		t.Fatalf("diagonal voxels are 26-connected; got %d components", len(conn.Components))
	}
}

func TestLabelMergesUShape(t *testing.T) {
	// Two arms that only meet at the bottom row must end up as one component
	// even though the scan sees them separately first.
	m := NewMask(1, 5, 5)
	for y := 0; y < 5; y++ {
		m.Set(0, y, 0, true)
		m.Set(0, y, 4, true)
	}
	for x := 0; x < 5; x++ {
		m.Set(0, 4, x, true)
	}

	conn := LabelComponents(m)
	if len(conn.Components) != 1 {
		t.Fatalf("got %d components, want 1", len(conn.Components))
	}
	if conn.Components[0].VoxelCount != 13 {
		t.Errorf("got %d voxels, want 13", conn.Components[0].VoxelCount)
	}
}

func TestLabelSeparatesDistantBlobs(t *testing.T) {
	m := NewMask(3, 3, 7)
	m.Set(0, 0, 0, true)
	m.Set(2, 2, 6, true)
	m.Set(1, 1, 3, true)

	// (1,1,3) is two steps in x from both others, so all three are separate
	conn := LabelComponents(m)
	if len(conn.Components) != 3 {
		t.Fatalf("got %d components, want 3", len(conn.Components))
	}
}

func TestLargestComponentEmpty(t *testing.T) {
	if largest, _ := LargestComponent(NewMask(2, 2, 2)); largest != nil {
		t.Fatal("empty mask should yield no component")
	}
}

func TestLargestTieGoesToFirst(t *testing.T) {
	m := NewMask(1, 1, 5)
	m.Set(0, 0, 0, true)
	m.Set(0, 0, 4, true)

	_, cc := LargestComponent(m)
	if cc.Bounds.Min.X != 0 {
		t.Errorf("tie should keep the first component in scan order, got %+v", cc.Bounds)
	}
}
