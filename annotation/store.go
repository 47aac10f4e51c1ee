package annotation

import (
	"errors"
	"fmt"

	"github.com/carbocation/ctlesion/volume"
)

var (
	// ErrWrongPlane is returned when an edit does not belong to the plane it
	// was sent for, e.g. a path edit from the sagittal view.
	ErrWrongPlane = errors.New("edit does not apply to this plane")

	// ErrUnsupportedShape is returned for shapes the plane does not accept. The
	// store is left unchanged.
	ErrUnsupportedShape = errors.New("unsupported shape")
)

// HeightRange is the vertical extent of the sagittal rectangle in display
// coordinates. Y0 and Y1 are stored as drawn, not sorted.
type HeightRange struct {
	Y0, Y1 float64
}

// Store holds at most one axial contour and one sagittal height range. The
// slots are set and cleared independently. A Store is not safe for concurrent
// use; the owning session serializes access.
type Store struct {
	contour     []Point
	contourPath string
	height      *HeightRange
}

// Contour returns a copy of the stored polygon, or nil.
func (s *Store) Contour() []Point {
	if s.contour == nil {
		return nil
	}

	out := make([]Point, len(s.contour))
	copy(out, s.contour)
	return out
}

// ContourPath returns the stored contour in its original SVG form.
func (s *Store) ContourPath() string {
	return s.contourPath
}

// HeightRange returns the stored range and whether one is present.
func (s *Store) HeightRange() (HeightRange, bool) {
	if s.height == nil {
		return HeightRange{}, false
	}
	return *s.height, true
}

// Complete reports whether both slots are present.
func (s *Store) Complete() bool {
	return s.contour != nil && s.height != nil
}

// Clear empties both slots, as happens when a different volume is loaded.
func (s *Store) Clear() {
	s.contour = nil
	s.contourPath = ""
	s.height = nil
}

// SetContour stores a closed path directly.
func (s *Store) SetContour(path string) error {
	points, closed, err := ParsePath(path)
	if err != nil {
		return err
	}
	if !closed {
		return fmt.Errorf("%w: path is not closed", ErrUnsupportedShape)
	}
	if len(points) < 3 {
		return fmt.Errorf("%w: contour needs at least 3 points, got %d", ErrUnsupportedShape, len(points))
	}

	s.contour = points
	s.contourPath = path
	return nil
}

// SetHeightRange stores a height range directly.
func (s *Store) SetHeightRange(y0, y1 float64) {
	s.height = &HeightRange{Y0: y0, Y1: y1}
}

// Apply updates the half of the store that belongs to plane. changed reports
// whether any slot was modified; callers drop their threshold and mask when it
// is true.
func (s *Store) Apply(plane volume.Axis, ev Event) (changed bool, err error) {
	if ev.Empty() {
		return false, nil
	}

	switch plane {
	case volume.Axial:
		return s.applyAxial(ev)
	case volume.Sagittal:
		return s.applySagittal(ev)
	}

	return false, fmt.Errorf("%w: %v", ErrWrongPlane, plane)
}

func (s *Store) applyAxial(ev Event) (bool, error) {
	if ev.HasShapes {
		if len(ev.Shapes) == 0 {
			had := s.contour != nil
			s.contour, s.contourPath = nil, ""
			return had, nil
		}

		last := ev.Shapes[len(ev.Shapes)-1]
		if last.Type != "path" {
			return false, fmt.Errorf("%w: axial view accepts closed paths, got %q", ErrUnsupportedShape, last.Type)
		}
		if err := s.SetContour(last.Path); err != nil {
			return false, err
		}
		return true, nil
	}

	if ev.Y0Edit != nil || ev.Y1Edit != nil {
		return false, ErrWrongPlane
	}

	// A dragged vertex with nothing stored yet has nothing to update.
	if ev.PathEdit == nil || s.contour == nil {
		return false, nil
	}
	if err := s.SetContour(*ev.PathEdit); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) applySagittal(ev Event) (bool, error) {
	if ev.HasShapes {
		if len(ev.Shapes) == 0 {
			had := s.height != nil
			s.height = nil
			return had, nil
		}

		last := ev.Shapes[len(ev.Shapes)-1]
		if last.Type != "rect" || last.Y0 == nil || last.Y1 == nil {
			return false, fmt.Errorf("%w: sagittal view accepts rectangles, got %q", ErrUnsupportedShape, last.Type)
		}
		s.SetHeightRange(*last.Y0, *last.Y1)
		return true, nil
	}

	if ev.PathEdit != nil {
		return false, ErrWrongPlane
	}

	if s.height == nil {
		return false, nil
	}
	if ev.Y0Edit != nil {
		s.height.Y0 = *ev.Y0Edit
	}
	if ev.Y1Edit != nil {
		s.height.Y1 = *ev.Y1Edit
	}
	return true, nil
}
