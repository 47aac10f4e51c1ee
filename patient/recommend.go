package patient

import (
	"encoding/binary"
	"sort"

	"github.com/minio/blake2b-simd"
)

// Clinical urgency of each hemorrhage type, used to weight the axial hint.
var axialWeights = map[string]float64{
	"경막외출혈":  1.0,
	"경막하출혈":  0.9,
	"뇌실질내출혈": 0.8,
	"지주막하출혈": 0.7,
	"뇌실내출혈":  0.6,
}

// Preferred sagittal position of each hemorrhage type, as a fraction of the
// sagittal extent.
var sagittalPreferences = map[string]float64{
	"경막외출혈":  0.35,
	"경막하출혈":  0.40,
	"뇌실질내출혈": 0.45,
	"지주막하출혈": 0.50,
	"뇌실내출혈":  0.55,
}

const (
	defaultAxialWeight      = 0.5
	defaultSagittalFraction = 0.45
)

// Recommendation is a cosmetic hint for where to place the two slicers. It
// never constrains navigation.
type Recommendation struct {
	// Axial is a slice number in the diagnosis table's numbering. It is only
	// meaningful when HasAxial is set.
	Axial    int     `json:"axial"`
	HasAxial bool    `json:"has_axial"`
	Sagittal float64 `json:"sagittal_fraction"`
}

// SagittalIndex scales the sagittal fraction to a slicer with extent steps.
func (r Recommendation) SagittalIndex(extent int) int {
	return int(float64(extent) * r.Sagittal)
}

// Recommend weighs each marked hemorrhage by urgency and spread.
func Recommend(info Info) Recommendation {
	out := Recommendation{Sagittal: 0.5}
	if len(info.Detailed) == 0 {
		return out
	}

	var center, weight float64
	var position, positionWeight float64

	names := make([]string, 0, len(info.Detailed))
	for name := range info.Detailed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := info.Detailed[name]
		w, ok := axialWeights[name]
		if !ok {
			w = defaultAxialWeight
		}
		combined := w * (1 + float64(d.AffectedSlices)/10)

		if lo, hi, ok := span(d.Slices); ok {
			center += float64(lo+hi) / 2 * combined
			weight += combined
		}

		pref, ok := sagittalPreferences[name]
		if !ok {
			pref = defaultSagittalFraction
		}
		position += pref * float64(d.AffectedSlices)
		positionWeight += float64(d.AffectedSlices)
	}

	if weight > 0 {
		out.Axial = int(center / weight)
		out.HasAxial = true
	}

	if positionWeight > 0 {
		ratio := position/positionWeight + jitter(info.PatientNumber)
		if ratio < 0.2 {
			ratio = 0.2
		}
		if ratio > 0.8 {
			ratio = 0.8
		}
		out.Sagittal = ratio
	}

	return out
}

// jitter is a stable per-patient offset in [-0.01, 0.009].
func jitter(patient string) float64 {
	h, err := blake2b.New(&blake2b.Config{Size: 32})
	if err != nil {
		return 0
	}
	if _, err := h.Write([]byte(patient)); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(h.Sum(nil)[:8]) % 20
	return (float64(n) - 10) / 1000
}

func span(slices []int) (lo, hi int, ok bool) {
	if len(slices) == 0 {
		return 0, 0, false
	}
	lo, hi = slices[0], slices[0]
	for _, s := range slices[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi, true
}
