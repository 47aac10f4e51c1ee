package volume

import "testing"

func TestSlicerBounds(t *testing.T) {
	v := mustVolume(t, 30, 64, 48, [3]float64{5, 0.5, 0.5})

	axial := NewSlicer(v, Axial)
	sagittal := NewSlicer(v, Sagittal)

	if lo, hi := axial.Bounds(); lo != 0 || hi != 29 {
		t.Errorf("axial bounds: got [%d,%d], want [0,29]", lo, hi)
	}
	if lo, hi := sagittal.Bounds(); lo != 0 || hi != 63 {
		t.Errorf("sagittal bounds: got [%d,%d], want [0,63]", lo, hi)
	}

	if axial.Index() != 15 || sagittal.Index() != 32 {
		t.Errorf("slicers should start centered, got %d and %d", axial.Index(), sagittal.Index())
	}
}

func TestSlicerClampsAndStaysIndependent(t *testing.T) {
	v := mustVolume(t, 10, 20, 20, [3]float64{1, 1, 1})
	axial := NewSlicer(v, Axial)
	sagittal := NewSlicer(v, Sagittal)

	if got := axial.SetIndex(-4); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := axial.SetIndex(400); got != 9 {
		t.Errorf("got %d, want 9", got)
	}
	if sagittal.Index() != 10 {
		t.Errorf("moving the axial slicer moved the sagittal one to %d", sagittal.Index())
	}
}

func TestSlicerAttachRecenters(t *testing.T) {
	a := mustVolume(t, 10, 10, 10, [3]float64{1, 1, 1})
	b := mustVolume(t, 4, 8, 8, [3]float64{1, 1, 1})

	s := NewSlicer(a, Axial)
	s.SetIndex(9)
	s.Attach(b)

	if s.Index() != 2 {
		t.Errorf("got %d, want 2", s.Index())
	}
	if _, hi := s.Bounds(); hi != 3 {
		t.Errorf("got hi %d, want 3", hi)
	}
}

func TestPlaneExtraction(t *testing.T) {
	v := mustVolume(t, 2, 3, 4, [3]float64{5, 0.5, 0.25})
	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				v.Set(z, y, x, float32(100*z+10*y+x))
			}
		}
	}

	ax := v.Plane(Axial, 1)
	if ax.Rows != 3 || ax.Cols != 4 || ax.At(2, 3) != 123 {
		t.Errorf("axial plane wrong: %+v", ax)
	}
	if ax.RowSpacing != 0.5 || ax.ColSpacing != 0.25 {
		t.Errorf("axial spacing wrong: %g x %g", ax.RowSpacing, ax.ColSpacing)
	}

	sag := v.Plane(Sagittal, 2)
	if sag.Rows != 2 || sag.Cols != 4 || sag.At(1, 3) != 123 || sag.At(0, 0) != 20 {
		t.Errorf("sagittal plane wrong: %+v", sag)
	}
	if sag.RowSpacing != 5 {
		t.Errorf("sagittal row spacing: got %g, want 5", sag.RowSpacing)
	}
}

func TestWindowGray(t *testing.T) {
	w := BrainWindow
	cases := []struct {
		hu   float64
		want uint8
	}{
		{-1000, 0},
		{0, 0},
		{40, 128},
		{80, 255},
		{3000, 255},
	}

	for _, c := range cases {
		if got := w.Gray(c.hu); got != c.want {
			t.Errorf("Gray(%g): got %d, want %d", c.hu, got, c.want)
		}
	}
}

func TestParseAxis(t *testing.T) {
	for _, s := range []string{"axial", "sagittal", "z", "x"} {
		if _, err := ParseAxis(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := ParseAxis("coronal"); err == nil {
		t.Error("coronal is not supported")
	}
}
