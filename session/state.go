package session

import (
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/volume"
)

type SlicerState struct {
	Index int `json:"index"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

type LesionState struct {
	Absence      string           `json:"absence,omitempty"`
	Voxels       int              `json:"voxels"`
	VolumeMM3    float64          `json:"volume_mm3"`
	VolumeML     float64          `json:"volume_ml"`
	Top          int              `json:"top"`
	Bottom       int              `json:"bottom"`
	Slices       int              `json:"slices"`
	Impression   string           `json:"impression"`
	CrossSection *segment.Moments `json:"cross_section,omitempty"`
}

// State is what the page needs to redraw its controls.
type State struct {
	Session string `json:"session"`
	Case    string `json:"case"`
	Loaded  bool   `json:"loaded"`

	Shape   [3]int     `json:"shape"`
	Spacing [3]float64 `json:"spacing"`

	Axial    SlicerState `json:"axial"`
	Sagittal SlicerState `json:"sagittal"`

	Patient        patient.Info           `json:"patient"`
	Recommendation patient.Recommendation `json:"recommendation"`

	HasContour     bool               `json:"has_contour"`
	HasHeightRange bool               `json:"has_height_range"`
	Threshold      *segment.Threshold `json:"threshold,omitempty"`
	Lesion         *LesionState       `json:"lesion,omitempty"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{
		Session:        s.ID,
		Case:           s.caseValue,
		Loaded:         s.smoothed != nil,
		Patient:        s.info,
		Recommendation: s.hint,
		HasContour:     len(s.annotation.Contour()) > 0,
	}
	if s.threshold != nil {
		th := *s.threshold
		out.Threshold = &th
	}
	_, out.HasHeightRange = s.annotation.HeightRange()

	if s.smoothed != nil {
		out.Shape = s.smoothed.Shape()
		out.Spacing = s.smoothed.Spacing
		out.Axial = slicerState(s.axial)
		out.Sagittal = slicerState(s.sagittal)
	}

	if r := s.result; r != nil {
		out.Lesion = &LesionState{
			Absence:      r.Absence,
			Voxels:       r.VoxelCount,
			VolumeMM3:    r.VolumeMM3,
			VolumeML:     r.VolumeML(),
			Top:          r.Top,
			Bottom:       r.Bottom,
			Slices:       r.SliceCount(),
			Impression:   r.Impression,
			CrossSection: r.Moments,
		}
	}

	return out
}

func slicerState(s *volume.Slicer) SlicerState {
	lo, hi := s.Bounds()
	return SlicerState{Index: s.Index(), Min: lo, Max: hi}
}
