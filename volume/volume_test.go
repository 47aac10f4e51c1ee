package volume

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func mustVolume(t *testing.T, d, h, w int, spacing [3]float64) *Volume {
	t.Helper()
	v, err := New(d, h, w, spacing)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestNewRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		d, h, w int
		spacing [3]float64
	}{
		{0, 4, 4, [3]float64{1, 1, 1}},
		{4, 4, 4, [3]float64{0, 1, 1}},
		{4, 4, 4, [3]float64{1, math.NaN(), 1}},
		{4, 4, 4, [3]float64{1, 1, math.Inf(1)}},
	}

	for _, c := range cases {
		if _, err := New(c.d, c.h, c.w, c.spacing); err == nil {
			t.Errorf("New(%d,%d,%d,%v): expected error", c.d, c.h, c.w, c.spacing)
		}
	}
}

func TestIndexIsDepthMajor(t *testing.T) {
	v := mustVolume(t, 2, 3, 4, [3]float64{1, 1, 1})
	v.Set(1, 2, 3, 7)

	if v.Data[len(v.Data)-1] != 7 {
		t.Fatalf("last voxel should be (1,2,3)")
	}
	if v.Index(0, 1, 0) != 4 {
		t.Errorf("Index(0,1,0): got %d, want 4", v.Index(0, 1, 0))
	}
}

func TestSummary(t *testing.T) {
	v := mustVolume(t, 2, 2, 2, [3]float64{1, 1, 1})
	for i := range v.Data {
		v.Data[i] = float32(i * 10)
	}
	v.Data[0] = -1000

	s := v.Summary()
	if s.Min != -1000 || s.Max != 70 {
		t.Errorf("min/max: got %g/%g", s.Min, s.Max)
	}
	want := (-1000.0 + 10 + 20 + 30 + 40 + 50 + 60 + 70) / 8
	if math.Abs(s.Mean-want) > 1e-9 {
		t.Errorf("mean: got %g, want %g", s.Mean, want)
	}
	if s.SD <= 0 {
		t.Errorf("sd: got %g", s.SD)
	}

	flat := mustVolume(t, 2, 2, 2, [3]float64{1, 1, 1})
	if sd := flat.Summary().SD; sd != 0 {
		t.Errorf("constant volume sd: got %g", sd)
	}
}

func TestVoxelVolume(t *testing.T) {
	v := mustVolume(t, 1, 1, 1, [3]float64{5, 0.5, 0.4})
	if got := v.VoxelVolume(); math.Abs(got-1) > 1e-12 {
		t.Errorf("got %g, want 1", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "49.nii"), LoadOptions{})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

// niftiFile describes a small int16 NIfTI-1 file. Values are indexed by the
// file's own (i, j, k) axes.
type niftiFile struct {
	ni, nj, nk int
	pixdim     [3]float32
	sform      *[3]float32
	slope      float32
	inter      float32
	value      func(i, j, k int) int16
}

func writeNIfTI(t *testing.T, f niftiFile) string {
	t.Helper()

	le := binary.LittleEndian
	hdr := make([]byte, 352)
	putF := func(off int, v float32) { le.PutUint32(hdr[off:], math.Float32bits(v)) }

	le.PutUint32(hdr[0:], 348)
	for i, d := range []int16{3, int16(f.ni), int16(f.nj), int16(f.nk), 1, 1, 1, 1} {
		le.PutUint16(hdr[40+2*i:], uint16(d))
	}
	le.PutUint16(hdr[70:], 4)  // int16
	le.PutUint16(hdr[72:], 16) // bitpix
	for i, p := range []float32{1, f.pixdim[0], f.pixdim[1], f.pixdim[2], 1, 1, 1, 1} {
		putF(76+4*i, p)
	}
	putF(108, 352) // vox_offset
	putF(112, f.slope)
	putF(116, f.inter)
	if f.sform != nil {
		le.PutUint16(hdr[254:], 1)
		putF(280, f.sform[0])
		putF(296+4, f.sform[1])
		putF(312+8, f.sform[2])
	}
	copy(hdr[344:], "n+1\x00")

	data := make([]byte, 0, 2*f.ni*f.nj*f.nk)
	for k := 0; k < f.nk; k++ {
		for j := 0; j < f.nj; j++ {
			for i := 0; i < f.ni; i++ {
				data = le.AppendUint16(data, uint16(f.value(i, j, k)))
			}
		}
	}

	path := filepath.Join(t.TempDir(), "49.nii")
	if err := os.WriteFile(path, append(hdr, data...), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCanonicalLayout(t *testing.T) {
	path := writeNIfTI(t, niftiFile{
		ni: 4, nj: 3, nk: 2,
		pixdim: [3]float32{0.5, 0.75, 5},
		value:  func(i, j, k int) int16 { return int16(100*k + 10*j + i - 500) },
	})

	v, err := Load(context.Background(), path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if got := v.Shape(); got != [3]int{2, 4, 3} {
		t.Fatalf("shape: got %v, want [2 4 3]", got)
	}
	if v.Spacing != [3]float64{5, 0.5, 0.75} {
		t.Errorf("spacing: got %v", v.Spacing)
	}

	// Height runs along i reversed, width along j.
	for _, c := range []struct {
		z, y, x int
		want    float32
	}{
		{0, 0, 0, 3 - 500},
		{0, 3, 0, 0 - 500},
		{1, 0, 2, 100 + 20 + 3 - 500},
		{1, 2, 1, 100 + 10 + 1 - 500},
	} {
		if got := v.At(c.z, c.y, c.x); got != c.want {
			t.Errorf("At(%d,%d,%d): got %g, want %g", c.z, c.y, c.x, got, c.want)
		}
	}

	if lo, hi := NewSlicer(v, Axial).Bounds(); lo != 0 || hi != 1 {
		t.Errorf("axial bounds: got [%d,%d]", lo, hi)
	}
	if lo, hi := NewSlicer(v, Sagittal).Bounds(); lo != 0 || hi != 3 {
		t.Errorf("sagittal bounds: got [%d,%d]", lo, hi)
	}
}

func TestLoadSpacingFromAffine(t *testing.T) {
	path := writeNIfTI(t, niftiFile{
		ni: 4, nj: 3, nk: 2,
		pixdim: [3]float32{0.5, 0.5, 5},
		sform:  &[3]float32{-0.8, 0.9, 4},
		slope:  2,
		inter:  -1024,
		value:  func(i, j, k int) int16 { return 10 },
	})

	v, err := Load(context.Background(), path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	want := [3]float64{4, float64(float32(0.8)), float64(float32(0.9))}
	if v.Spacing != want {
		t.Errorf("spacing: got %v, want %v", v.Spacing, want)
	}
	if got := v.At(1, 3, 2); got != 10*2-1024 {
		t.Errorf("scaled sample: got %g", got)
	}

	// k voxels in mm^3
	if got, want := 7*v.VoxelVolume(), 7*want[0]*want[1]*want[2]; math.Abs(got-want) > 1e-9 {
		t.Errorf("volume: got %g, want %g", got, want)
	}
}
