package annotation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/carbocation/ctlesion/volume"
)

const square = "M10,10L20,10L20,20L10,20Z"

func mustParse(t *testing.T, payload string) Event {
	t.Helper()
	ev, err := ParseRelayout([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestParsePath(t *testing.T) {
	points, closed, err := ParsePath(square)
	if err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Error("expected closed path")
	}
	want := []Point{{10, 10}, {20, 10}, {20, 20}, {10, 20}}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}

	if got := FormatPath(points); got != square {
		t.Errorf("FormatPath: got %q", got)
	}

	for _, bad := range []string{"", "L1,2Z", "M1,2L3Z", "M1,xZ"} {
		if _, _, err := ParsePath(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestParseRelayout(t *testing.T) {
	ev := mustParse(t, `{"shapes[3].path": "M1,1L2,2L3,1Z", "xaxis.range[0]": 4}`)
	if ev.HasShapes || ev.PathEdit == nil || *ev.PathEdit != "M1,1L2,2L3,1Z" {
		t.Errorf("path edit: got %+v", ev)
	}

	ev = mustParse(t, `{"shapes[0].y0": 12.5, "shapes[0].y1": 30}`)
	if ev.Y0Edit == nil || *ev.Y0Edit != 12.5 || ev.Y1Edit == nil || *ev.Y1Edit != 30 {
		t.Errorf("y edits: got %+v", ev)
	}

	if ev := mustParse(t, `{"autosize": true}`); !ev.Empty() {
		t.Errorf("expected empty event, got %+v", ev)
	}

	if _, err := ParseRelayout([]byte(`{"shapes": 3}`)); err == nil {
		t.Error("expected an error for malformed shapes")
	}
}

func TestAxialLastPathWins(t *testing.T) {
	var s Store
	changed, err := s.Apply(volume.Axial, mustParse(t, `{"shapes":[
		{"type":"path","path":"M0,0L1,0L1,1Z"},
		{"type":"path","path":"`+square+`"}]}`))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if s.ContourPath() != square || len(s.Contour()) != 4 {
		t.Errorf("got %q", s.ContourPath())
	}
	if s.Complete() {
		t.Error("no height range yet")
	}
}

func TestAxialRejectsOpenPathAndRect(t *testing.T) {
	var s Store
	if err := s.SetContour(square); err != nil {
		t.Fatal(err)
	}

	for _, payload := range []string{
		`{"shapes":[{"type":"path","path":"M0,0L5,0L5,5"}]}`,
		`{"shapes":[{"type":"rect","x0":0,"x1":1,"y0":0,"y1":1}]}`,
	} {
		_, err := s.Apply(volume.Axial, mustParse(t, payload))
		if !errors.Is(err, ErrUnsupportedShape) {
			t.Errorf("%s: got err %v", payload, err)
		}
		if s.ContourPath() != square {
			t.Errorf("%s: store changed to %q", payload, s.ContourPath())
		}
	}
}

func TestAxialPathEdit(t *testing.T) {
	var s Store
	edit := `{"shapes[0].path":"M0,0L8,0L8,8L0,8Z"}`

	// nothing stored: ignored
	if changed, err := s.Apply(volume.Axial, mustParse(t, edit)); changed || err != nil {
		t.Fatalf("changed=%v err=%v", changed, err)
	}

	if err := s.SetContour(square); err != nil {
		t.Fatal(err)
	}
	if changed, err := s.Apply(volume.Axial, mustParse(t, edit)); !changed || err != nil {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if got := s.Contour()[1]; got != (Point{8, 0}) {
		t.Errorf("got %+v", got)
	}

	if _, err := s.Apply(volume.Axial, mustParse(t, `{"shapes[0].y0": 3}`)); !errors.Is(err, ErrWrongPlane) {
		t.Errorf("y edit on axial: got %v", err)
	}
}

func TestSagittalKeepsOnlyHeight(t *testing.T) {
	var s Store
	if err := s.SetContour(square); err != nil {
		t.Fatal(err)
	}

	_, err := s.Apply(volume.Sagittal, mustParse(t, `{"shapes":[
		{"type":"rect","x0":0,"x1":100,"y0":40,"y1":10}]}`))
	if err != nil {
		t.Fatal(err)
	}
	hr, ok := s.HeightRange()
	if !ok || hr != (HeightRange{Y0: 40, Y1: 10}) {
		t.Fatalf("got %+v %v", hr, ok)
	}
	if !s.Complete() {
		t.Error("both slots set; expected complete")
	}

	if _, err := s.Apply(volume.Sagittal, mustParse(t, `{"shapes[0].y1": 25}`)); err != nil {
		t.Fatal(err)
	}
	if hr, _ := s.HeightRange(); hr.Y1 != 25 || hr.Y0 != 40 {
		t.Errorf("after edit got %+v", hr)
	}

	if _, err := s.Apply(volume.Sagittal, mustParse(t, `{"shapes":[{"type":"path","path":"`+square+`"}]}`)); !errors.Is(err, ErrUnsupportedShape) {
		t.Errorf("path on sagittal: got %v", err)
	}
}

func TestEmptyListClearsOnlyItsSlot(t *testing.T) {
	var s Store
	if err := s.SetContour(square); err != nil {
		t.Fatal(err)
	}
	s.SetHeightRange(1, 2)

	changed, err := s.Apply(volume.Sagittal, mustParse(t, `{"shapes":[]}`))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if _, ok := s.HeightRange(); ok {
		t.Error("height range should be cleared")
	}
	if s.Contour() == nil {
		t.Error("contour must survive a sagittal clear")
	}

	if changed, _ := s.Apply(volume.Sagittal, mustParse(t, `{"shapes":[]}`)); changed {
		t.Error("clearing an empty slot is not a change")
	}

	s.Clear()
	if s.Contour() != nil || s.Complete() {
		t.Error("Clear should empty both slots")
	}
}
