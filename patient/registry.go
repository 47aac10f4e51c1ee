package patient

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carbocation/ctlesion"
)

// TypeDetail summarizes the slices on which one hemorrhage type was marked.
type TypeDetail struct {
	AffectedSlices int     `json:"affected_slices"`
	Percentage     float64 `json:"percentage"`
	Slices         []int   `json:"slice_range"`
}

// FractureDetail summarizes the slices on which a fracture was marked.
type FractureDetail struct {
	AffectedSlices int     `json:"affected_slices"`
	Percentage     float64 `json:"percentage"`
}

// Info is everything known about one patient. Missing values carry Unknown
// rather than being left empty.
type Info struct {
	PatientNumber   string                `json:"patient_num"`
	Age             string                `json:"age"`
	Gender          string                `json:"gender"`
	HemorrhageTypes []string              `json:"hemorrhage_types"`
	Fracture        bool                  `json:"fracture"`
	Note            string                `json:"note"`
	Detailed        map[string]TypeDetail `json:"detailed_diagnosis"`
	TotalSlices     int                   `json:"total_slices"`
	AffectedSlices  int                   `json:"affected_slices"`
	FractureDetail  *FractureDetail       `json:"fracture_details,omitempty"`
}

// Diagnosis joins the hemorrhage types, or reports Normal.
func (i Info) Diagnosis() string {
	if len(i.HemorrhageTypes) == 0 {
		return Normal
	}
	return strings.Join(i.HemorrhageTypes, ", ")
}

// FractureText renders the fracture flag for display.
func (i Info) FractureText() string {
	if i.Fracture {
		return "있음"
	}
	return "없음"
}

func unknownInfo(patient string) Info {
	return Info{
		PatientNumber: patient,
		Age:           Unknown,
		Gender:        Unknown,
		Detailed:      map[string]TypeDetail{},
	}
}

// SampleInfo describes the bundled sample volume.
func SampleInfo() Info {
	out := unknownInfo(SamplePatient)
	out.Note = "기본 샘플 이미지입니다."
	return out
}

// Registry holds both metadata tables in memory. Either may be empty.
type Registry struct {
	demographics map[int]Demographic
	slices       map[int][]SliceDiagnosis
}

// NewRegistry builds a registry from already-parsed tables.
func NewRegistry(demographics map[int]Demographic, slices map[int][]SliceDiagnosis) *Registry {
	if demographics == nil {
		demographics = map[int]Demographic{}
	}
	if slices == nil {
		slices = map[int][]SliceDiagnosis{}
	}
	return &Registry{demographics: demographics, slices: slices}
}

// LoadOptions controls where the metadata tables come from.
type LoadOptions struct {
	DemographicsPath string
	DiagnosisPath    string
	StorageClient    *storage.Client
	Log              logrus.FieldLogger
}

// Load reads both tables concurrently. A table that is missing or unreadable
// is logged and left empty; Load itself only fails if ctx is cancelled.
func Load(ctx context.Context, opts LoadOptions) (*Registry, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var demographics map[int]Demographic
	var slices map[int][]SliceDiagnosis

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, ok := readOptional(gctx, log, opts.DemographicsPath, opts.StorageClient)
		if !ok {
			return gctx.Err()
		}
		parsed, err := ParseDemographics(data)
		if err != nil {
			log.WithError(err).WithField("path", opts.DemographicsPath).Warn("could not parse demographics")
			return nil
		}
		demographics = parsed
		return nil
	})

	g.Go(func() error {
		data, ok := readOptional(gctx, log, opts.DiagnosisPath, opts.StorageClient)
		if !ok {
			return gctx.Err()
		}
		parsed, err := ParseDiagnosis(data)
		if err != nil {
			log.WithError(err).WithField("path", opts.DiagnosisPath).Warn("could not parse slice diagnoses")
			return nil
		}
		slices = parsed
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"patients": len(demographics),
		"scans":    len(slices),
	}).Info("loaded patient metadata")

	return NewRegistry(demographics, slices), nil
}

func readOptional(ctx context.Context, log logrus.FieldLogger, path string, client *storage.Client) ([]byte, bool) {
	if path == "" {
		return nil, false
	}

	data, err := ctlesion.ReadAllMaybeCompressed(ctx, path, client)
	if err != nil {
		log.WithError(err).WithField("path", path).Info("metadata table unavailable")
		return nil, false
	}

	return data, true
}

// HasDemographics reports whether the patient has a demographics row.
func (r *Registry) HasDemographics(patient int) bool {
	_, ok := r.demographics[patient]
	return ok
}

// Info summarizes one patient. Unknown patients yield placeholders.
func (r *Registry) Info(patient int) Info {
	out := unknownInfo(strconv.Itoa(patient))

	if row, ok := r.demographics[patient]; ok {
		out.Age = formatAge(row.Age)
		if row.Gender.Valid && strings.TrimSpace(row.Gender.String) != "" {
			out.Gender = strings.TrimSpace(row.Gender.String)
		}
		out.Fracture = row.flag("Fracture")
		if row.Note.Valid {
			out.Note = row.Note.String
		}
		for _, ht := range HemorrhageTypes {
			if row.flag(ht.Column) {
				out.HemorrhageTypes = append(out.HemorrhageTypes, ht.Name)
			}
		}
	}

	slices := r.slices[patient]
	if len(slices) == 0 {
		return out
	}

	out.TotalSlices = len(slices)
	for _, ht := range HemorrhageTypes {
		var marked []int
		for _, s := range slices {
			if s.flag(ht.Column) {
				marked = append(marked, s.SliceNumber)
			}
		}
		if len(marked) == 0 {
			continue
		}
		sort.Ints(marked)
		out.Detailed[ht.Name] = TypeDetail{
			AffectedSlices: len(marked),
			Percentage:     percent(len(marked), out.TotalSlices),
			Slices:         marked,
		}
	}

	fractured := 0
	for _, s := range slices {
		if s.NoHemorrhage == 0 {
			out.AffectedSlices++
		}
		if s.Fracture == 1 {
			fractured++
		}
	}
	if fractured > 0 {
		out.FractureDetail = &FractureDetail{
			AffectedSlices: fractured,
			Percentage:     percent(fractured, out.TotalSlices),
		}
	}

	return out
}

// percent is n/total as a percentage rounded to one decimal.
func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
