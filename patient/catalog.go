package patient

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultCase is the value and label of the bundled sample volume.
	DefaultCase = "기본 뇌 CT 샘플 이미지 (NII)"

	SamplePatient = "샘플"
)

// Case is one selectable scan.
type Case struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PatientNumber extracts the patient number from a scan file name such as
// "049.nii.gz". ok is false for the default case or a non-numeric name.
func PatientNumber(value string) (int, bool) {
	if value == DefaultCase {
		return 0, false
	}
	stem := strings.SplitN(filepath.Base(value), ".", 2)[0]
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsScanFile reports whether name looks like a NIfTI volume.
func IsScanFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// Catalog lists the scans under <datasetDir>/ct_scans in numeric order,
// labelled with what the registry knows about each patient. When the folder
// is absent or empty only the default case is offered.
func Catalog(datasetDir string, reg *Registry) []Case {
	entries, err := os.ReadDir(filepath.Join(datasetDir, "ct_scans"))
	if err != nil {
		return []Case{{Label: DefaultCase, Value: DefaultCase}}
	}

	type scan struct {
		name   string
		number int
	}

	var scans []scan
	for _, e := range entries {
		if e.IsDir() || !IsScanFile(e.Name()) {
			continue
		}
		n, ok := PatientNumber(e.Name())
		if !ok {
			continue
		}
		scans = append(scans, scan{name: e.Name(), number: n})
	}

	if len(scans) == 0 {
		return []Case{{Label: DefaultCase, Value: DefaultCase}}
	}

	sort.Slice(scans, func(i, j int) bool { return scans[i].number < scans[j].number })

	out := make([]Case, 0, len(scans))
	for _, s := range scans {
		out = append(out, Case{Label: reg.Label(s.number), Value: s.name})
	}

	return out
}

// Label renders the catalog label for a patient.
func (r *Registry) Label(patient int) string {
	if r == nil || !r.HasDemographics(patient) {
		return fmt.Sprintf("환자 %d (정보없음)", patient)
	}

	info := r.Info(patient)
	return fmt.Sprintf("환자 %d (나이 : %s세, 성별 : %s, 진단 : %s)", patient, info.Age, info.Gender, info.Diagnosis())
}

// InfoForCase resolves a catalog value to patient info.
func (r *Registry) InfoForCase(value string) Info {
	if value == DefaultCase {
		return SampleInfo()
	}

	n, ok := PatientNumber(value)
	if !ok || r == nil {
		return unknownInfo(Unknown)
	}

	return r.Info(n)
}

// ScanPath returns the file backing a catalog value. The default case maps to
// defaultImage.
func ScanPath(datasetDir, defaultImage, value string) string {
	if value == DefaultCase {
		return defaultImage
	}
	return filepath.Join(datasetDir, "ct_scans", filepath.Base(value))
}
