package segment

import (
	"bytes"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/carbocation/ctlesion/annotation"
	"github.com/carbocation/ctlesion/volume"
)

func square(lo, hi float64) []annotation.Point {
	return []annotation.Point{{X: lo, Y: lo}, {X: hi, Y: lo}, {X: hi, Y: hi}, {X: lo, Y: hi}}
}

func count(plane []bool) int {
	n := 0
	for _, v := range plane {
		if v {
			n++
		}
	}
	return n
}

func TestRasterizeSquare(t *testing.T) {
	// Pixels 3..6 are covered fully, 2 and 7 by less than half.
	plane := Rasterize(square(2.2, 6.7), 10, 10)
	if got := count(plane); got != 16 {
		t.Fatalf("got %d pixels, want 16", got)
	}
	if !plane[3*10+3] || !plane[6*10+6] || plane[2*10+2] || plane[7*10+7] {
		t.Error("unexpected coverage at the square's corners")
	}
}

func TestRasterizeAreaIsMonotone(t *testing.T) {
	prev := 0
	for _, hi := range []float64{3.1, 4.6, 6, 9.4, 14.2, 19} {
		got := count(Rasterize(square(1.3, hi), 20, 20))
		if got < prev {
			t.Fatalf("hi=%g: area %d shrank from %d", hi, got, prev)
		}
		prev = got
	}
}

func TestRasterizeFillsHoles(t *testing.T) {
	// A ring drawn as one self-overlapping path: outer square then inner square
	// in the opposite direction leaves a hole under the nonzero rule.
	ring := []annotation.Point{
		{X: 1, Y: 1}, {X: 12, Y: 1}, {X: 12, Y: 12}, {X: 1, Y: 12}, {X: 1, Y: 1},
		{X: 4, Y: 4}, {X: 4, Y: 9}, {X: 9, Y: 9}, {X: 9, Y: 4}, {X: 4, Y: 4},
	}
	plane := Rasterize(ring, 14, 14)
	if plane == nil {
		t.Fatal("expected coverage")
	}
	if !plane[6*14+6] {
		t.Error("the enclosed hole should be filled")
	}
}

func TestRasterizeDegenerate(t *testing.T) {
	if Rasterize([]annotation.Point{{X: 1, Y: 1}, {X: 5, Y: 5}}, 10, 10) != nil {
		t.Error("two vertices cannot enclose anything")
	}
	if Rasterize([]annotation.Point{{X: 9, Y: 0}, {X: 9, Y: 4}, {X: 9, Y: 9}}, 10, 10) != nil {
		t.Error("a collinear polygon covers no pixel by half")
	}
}

func TestRasterizeHalfCoverage(t *testing.T) {
	// On the canvas the square spans [2.4, 6.3]: pixel 2 is 60% covered along
	// each axis and pixel 6 only 30%.
	plane := Rasterize(square(1.9, 5.8), 10, 10)
	if got := count(plane); got != 15 {
		t.Fatalf("got %d pixels, want 15", got)
	}
	if !plane[2*10+4] || !plane[4*10+2] {
		t.Error("edge pixels covered by 60% belong to the polygon")
	}
	if plane[2*10+2] {
		t.Error("the corner pixel is covered by 36% only")
	}
	if plane[6*10+4] || plane[4*10+6] {
		t.Error("pixels covered by 30% are outside")
	}
}

func TestToPixelsClipsAndLogs(t *testing.T) {
	log, hook := test.NewNullLogger()

	got := ToPixels(log, []annotation.Point{{X: -3, Y: 2}, {X: 100, Y: 4}, {X: 5, Y: 4}}, 10, 20, 0.5, 2)
	want := []annotation.Point{{X: 0, Y: 4}, {X: 19, Y: 8}, {X: 2.5, Y: 8}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vertex %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatalf("expected one warning, got %d entries", len(hook.Entries))
	}
	if hook.LastEntry().Data["clipped"] != 2 {
		t.Errorf("clipped: got %v", hook.LastEntry().Data["clipped"])
	}
}

func TestSliceRange(t *testing.T) {
	cases := []struct {
		y0, y1      float64
		top, bottom int
	}{
		{4, 12, 2, 6},
		{12, 4, 2, 6},
		{5, 5.5, 2, 3},
		{-10, 3, 0, 1},
		{100, 200, 9, 10},
		{0, 100, 0, 9},
	}

	for _, c := range cases {
		top, bottom := SliceRange(annotation.HeightRange{Y0: c.y0, Y1: c.y1}, 2, 10)
		if top != c.top || bottom != c.bottom {
			t.Errorf("(%g, %g): got [%d, %d), want [%d, %d)", c.y0, c.y1, top, bottom, c.top, c.bottom)
		}
		if top > bottom || bottom-top < 1 {
			t.Errorf("(%g, %g): range must be sorted and non-empty", c.y0, c.y1)
		}
	}
}

// lesionVolume is 10 slices of 20x20 at 20 HU with a 48-voxel blob at 60 HU
// and a single stray voxel at 60 HU.
func lesionVolume(t *testing.T) *volume.Volume {
	t.Helper()
	v, err := volume.New(10, 20, 20, [3]float64{2, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Data {
		v.Data[i] = 20
	}
	for z := 3; z <= 5; z++ {
		for y := 8; y <= 11; y++ {
			for x := 8; x <= 11; x++ {
				v.Set(z, y, x, 60)
			}
		}
	}
	v.Set(3, 3, 3, 60)
	return v
}

func completeStore(t *testing.T) *annotation.Store {
	t.Helper()
	var s annotation.Store
	// 0.6mm to 8.1mm is pixels 2..16 at 0.5mm spacing
	if err := s.SetContour(annotation.FormatPath(square(0.6, 8.1))); err != nil {
		t.Fatal(err)
	}
	// 12mm and 4mm at 2mm per slice: [2, 6)
	s.SetHeightRange(12, 4)
	return &s
}

func TestSegmentKeepsLargestComponent(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := &Engine{Log: log}

	res := e.Segment(lesionVolume(t), completeStore(t), Threshold{Min: 70, Max: 50})
	if res.Absent() {
		t.Fatalf("unexpected absence: %s", res.Absence)
	}

	if res.Threshold != (Threshold{Min: 50, Max: 70}) {
		t.Errorf("threshold should be sorted, got %+v", res.Threshold)
	}
	if res.VoxelCount != 48 || res.Mask.Count() != 48 {
		t.Errorf("got %d voxels, want 48", res.VoxelCount)
	}
	if res.Mask.At(3, 3, 3) {
		t.Error("the stray voxel should be discarded")
	}
	if want := 48 * 2 * 0.5 * 0.5; math.Abs(res.VolumeMM3-want) > 1e-9 {
		t.Errorf("volume: got %g, want %g", res.VolumeMM3, want)
	}
	if res.Top != 2 || res.Bottom != 6 {
		t.Errorf("slice range: got [%d, %d)", res.Top, res.Bottom)
	}
	if res.SliceCount() != 3 {
		t.Errorf("slice count: got %d", res.SliceCount())
	}
	if res.Impression != ImpressionHemorrhage {
		t.Errorf("impression: got %q", res.Impression)
	}
	if res.Moments == nil || res.Moments.AreaMM2 != 16*0.25 {
		t.Errorf("moments: got %+v", res.Moments)
	}
}

func TestSegmentRespectsHalfOpenDepth(t *testing.T) {
	s := completeStore(t)
	// [2, 4): only slice 3 of the blob survives
	s.SetHeightRange(4, 8)

	res := (&Engine{}).Segment(lesionVolume(t), s, Threshold{Min: 50, Max: 70})
	if res.VoxelCount != 16 {
		t.Fatalf("got %d voxels, want 16", res.VoxelCount)
	}
}

func TestSegmentAbsence(t *testing.T) {
	v := lesionVolume(t)

	res := (&Engine{}).Segment(v, completeStore(t), Threshold{Min: 200, Max: 300})
	if !res.Absent() || res.Absence != AbsentNoCandidates {
		t.Errorf("out of range threshold: got %q", res.Absence)
	}

	var partial annotation.Store
	partial.SetHeightRange(0, 10)
	if res := (&Engine{}).Segment(v, &partial, Threshold{0, 100}); res.Absence != AbsentIncomplete {
		t.Errorf("incomplete: got %q", res.Absence)
	}

	outside := completeStore(t)
	if err := outside.SetContour(annotation.FormatPath(square(100, 200))); err != nil {
		t.Fatal(err)
	}
	if res := (&Engine{}).Segment(v, outside, Threshold{0, 100}); res.Absence != AbsentEmptyPolygon {
		t.Errorf("contour outside the plane: got %q", res.Absence)
	}

	if res := (&Engine{}).Segment(nil, completeStore(t), Threshold{0, 100}); res.Absence != AbsentNoVolume {
		t.Errorf("no volume: got %q", res.Absence)
	}
}

func TestImpression(t *testing.T) {
	cases := []struct {
		th   Threshold
		want string
	}{
		{Threshold{40, 90}, ImpressionHemorrhage},
		{Threshold{0, 40}, ImpressionInfarct},
		{Threshold{30, 60}, ImpressionUncertain},
		{Threshold{90, 45}, ImpressionHemorrhage},
	}
	for _, c := range cases {
		if got := Impression(c.th); got != c.want {
			t.Errorf("%+v: got %q, want %q", c.th, got, c.want)
		}
	}
}

func TestHistogram(t *testing.T) {
	v := lesionVolume(t)
	e := &Engine{}
	region, err := e.Region(v, completeStore(t).Contour(), annotation.HeightRange{Y0: 4, Y1: 12})
	if err != nil {
		t.Fatal(err)
	}

	values := ROIIntensities(v, region)
	if len(values) != region.Area()*region.Slices() {
		t.Fatalf("got %d values for %d pixels over %d slices", len(values), region.Area(), region.Slices())
	}

	hg, err := NewHistogram(values, 16)
	if err != nil {
		t.Fatal(err)
	}
	if hg.Total() != len(values) {
		t.Errorf("histogram counts %d of %d values", hg.Total(), len(values))
	}
	if hg.Stats.Min != 20 || hg.Stats.Max != 60 || hg.Stats.Median != 20 {
		t.Errorf("stats: got %+v", hg.Stats)
	}

	var buf bytes.Buffer
	if err := hg.RenderPNG(&buf, &Threshold{Min: 50, Max: 70}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG output")
	}

	if _, err := NewHistogram(nil, 16); err != ErrNoROI {
		t.Errorf("empty sample: got %v", err)
	}
}
