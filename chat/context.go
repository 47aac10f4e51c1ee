package chat

// Detail is the per-type slice summary from the diagnosis table.
type Detail struct {
	Name           string  `json:"name"`
	AffectedSlices int     `json:"affected_slices"`
	Percentage     float64 `json:"percentage"`
}

type HURange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SliceRange is an inclusive span of axial slice indices.
type SliceRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s SliceRange) Count() int {
	return s.End - s.Start + 1
}

// AnalysisContext is the read-only snapshot of what the viewer knows when a
// question is asked. An empty PatientNumber means no case is loaded.
type AnalysisContext struct {
	PatientNumber  string   `json:"patient_number"`
	Age            string   `json:"age"`
	Gender         string   `json:"gender"`
	Diagnosis      string   `json:"diagnosis"`
	Fracture       bool     `json:"fracture"`
	Detailed       []Detail `json:"detailed_diagnosis"`
	TotalSlices    int      `json:"total_slices"`
	AffectedSlices int      `json:"affected_slices"`

	// Set once a segmentation has produced a mask.
	HasAnalysis     bool        `json:"has_analysis"`
	RealDiagnosis   string      `json:"real_diagnosis,omitempty"`
	Impression      string      `json:"ai_analysis_result,omitempty"`
	HURange         *HURange    `json:"actual_hu_range,omitempty"`
	LesionVolumeMM3 float64     `json:"lesion_volume,omitempty"`
	SliceRange      *SliceRange `json:"slice_range,omitempty"`
	LearningPoint   string      `json:"learning_point,omitempty"`
}

func (c *AnalysisContext) hasPatient() bool {
	return c != nil && c.PatientNumber != ""
}

func (c *AnalysisContext) diagnosis() string {
	if c == nil || c.Diagnosis == "" {
		return "정상"
	}
	return c.Diagnosis
}

// Turn is one exchange of the conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
