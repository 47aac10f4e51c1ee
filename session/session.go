// Package session holds the state of one viewer: the loaded volume, the two
// slicers, the annotation, the threshold and everything derived from them.
// Every mutating call holds the session lock for its whole pass, so one user's
// actions never interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/annotation"
	"github.com/carbocation/ctlesion/chat"
	"github.com/carbocation/ctlesion/findings"
	"github.com/carbocation/ctlesion/mesh"
	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/volume"
)

var ErrNoVolume = errors.New("no volume loaded")

// Recorder receives every lesion that was found. *findings.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, f findings.Finding) (int64, error)
}

// Env is shared by all sessions.
type Env struct {
	Log logrus.FieldLogger

	DatasetDir    string
	DefaultImage  string
	StorageClient *storage.Client
	Registry      *patient.Registry

	Workers   int
	Smoothing volume.Footprint
	Window    volume.Window
	Bins      int
	Labels    overlay.LabelMap

	OverviewLevel   float64
	OverviewStep    int
	LesionStep      int
	LesionSmoothing volume.Footprint

	Engine    *segment.Engine
	Meshes    *mesh.Extractor
	Assistant *chat.Assistant

	// Findings may be nil.
	Findings Recorder
}

func (e *Env) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// setDefaults fills every unset field. It must run before the Env is shared.
func (e *Env) setDefaults() {
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	if e.Labels == nil {
		e.Labels = overlay.DefaultLabels()
	}
	if e.Smoothing == (volume.Footprint{}) {
		e.Smoothing = volume.Footprint{Z: 1, Y: 3, X: 3}
	}
	if e.Window == (volume.Window{}) {
		e.Window = volume.BrainWindow
	}
	if e.Bins <= 0 {
		e.Bins = segment.DefaultBins
	}
	if e.OverviewStep <= 0 {
		e.OverviewLevel = mesh.OverviewLevel
		e.OverviewStep = mesh.OverviewStep
	}
	if e.LesionStep <= 0 {
		e.LesionStep = mesh.LesionStep
	}
	if e.LesionSmoothing == (volume.Footprint{}) {
		e.LesionSmoothing = mesh.LesionSmoothing
	}
	if e.Engine == nil {
		e.Engine = &segment.Engine{Log: e.Log}
	}
	if e.Meshes == nil {
		e.Meshes = &mesh.Extractor{Log: e.Log, Workers: e.Workers}
	}
	if e.Assistant == nil {
		e.Assistant = &chat.Assistant{Log: e.Log}
	}
}

type Session struct {
	ID  string
	env *Env

	mu sync.Mutex

	// loads counts case selections; only the newest may install its volume.
	loads uint64

	caseValue string
	info      patient.Info
	hint      patient.Recommendation

	raw, smoothed   *volume.Volume
	axial, sagittal *volume.Slicer

	annotation annotation.Store
	threshold  *segment.Threshold
	result     *segment.Result

	overview *mesh.Result
	lesion   *mesh.Result

	conversation *chat.Conversation
}

func New(id string, env *Env) *Session {
	return &Session{
		ID:           id,
		env:          env,
		axial:        volume.NewSlicer(nil, volume.Axial),
		sagittal:     volume.NewSlicer(nil, volume.Sagittal),
		conversation: chat.NewConversation(0),
	}
}

// LoadCase reads and smooths the volume behind a catalog value. On failure the
// previous volume stays in place. The file is read outside the session lock;
// if another case is selected meanwhile, the older load is dropped.
func (s *Session) LoadCase(ctx context.Context, value string) error {
	ticket := s.beginLoad()

	path := patient.ScanPath(s.env.DatasetDir, s.env.DefaultImage, value)
	raw, err := volume.Load(ctx, path, volume.LoadOptions{
		StorageClient: s.env.StorageClient,
		Log:           s.env.log(),
	})
	if err != nil {
		s.env.log().WithError(err).WithField("case", value).Errorln("Could not load case")
		return err
	}

	return s.finishLoad(ctx, ticket, raw, value, s.env.Registry.InfoForCase(value))
}

func (s *Session) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	return s.loads
}

func (s *Session) finishLoad(ctx context.Context, ticket uint64, raw *volume.Volume, value string, info patient.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.loads {
		s.env.log().WithField("case", value).Debugln("Dropping superseded case load")
		return nil
	}
	return s.install(ctx, raw, value, info)
}

// SetVolume replaces the volume and resets everything derived from the old
// one. Case loads still in flight are superseded.
func (s *Session) SetVolume(ctx context.Context, raw *volume.Volume, value string, info patient.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	return s.install(ctx, raw, value, info)
}

// install must be called with s.mu held.
func (s *Session) install(ctx context.Context, raw *volume.Volume, value string, info patient.Info) error {
	smoothed, err := volume.MedianFilter(ctx, raw, s.env.Smoothing, s.env.Workers)
	if err != nil {
		return fmt.Errorf("smoothing %s: %w", value, err)
	}

	s.caseValue = value
	s.info = info
	s.hint = patient.Recommend(info)
	s.raw, s.smoothed = raw, smoothed

	s.axial.Attach(smoothed)
	s.sagittal.Attach(smoothed)

	s.annotation.Clear()
	s.threshold = nil
	s.result = nil
	s.overview = nil
	s.lesion = nil

	return nil
}

func (s *Session) slicer(axis volume.Axis) *volume.Slicer {
	if axis == volume.Sagittal {
		return s.sagittal
	}
	return s.axial
}

// SetSlice moves one slicer and returns the index that was applied.
func (s *Session) SetSlice(axis volume.Axis, index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.smoothed == nil {
		return 0, ErrNoVolume
	}
	return s.slicer(axis).SetIndex(index), nil
}

// SliceImage renders the current plane of one slicer with the lesion painted
// over it.
func (s *Session) SliceImage(axis volume.Axis) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.smoothed == nil {
		return nil, ErrNoVolume
	}

	sl := s.slicer(axis)
	plane := sl.Plane()

	var layers []overlay.Layer
	if s.result != nil && s.result.Mask != nil {
		_, _, data := s.result.Mask.Plane(axis, sl.Index())
		layers = append(layers, overlay.Layer{Label: overlay.LabelLesion, Opacity: 160, Plane: data})
	}

	return s.env.Labels.RenderPlane(plane, s.env.Window, layers...)
}

// ApplyAnnotation applies a relayout event from one plane. Any change drops
// the threshold and the mask derived from it.
func (s *Session) ApplyAnnotation(axis volume.Axis, ev annotation.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.annotation.Apply(axis, ev)
	if err != nil {
		return false, err
	}
	if changed {
		s.threshold = nil
		s.result = nil
		s.lesion = nil
	}

	return changed, nil
}

// Histogram summarises the smoothed intensities inside the annotated prism.
func (s *Session) Histogram() (*segment.Histogram, *segment.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, err := s.region()
	if err != nil {
		return nil, nil, err
	}

	h, err := segment.NewHistogram(segment.ROIIntensities(s.smoothed, region), s.env.Bins)
	if err != nil {
		return nil, nil, err
	}

	var th *segment.Threshold
	if s.threshold != nil {
		cp := *s.threshold
		th = &cp
	}

	return h, th, nil
}

func (s *Session) region() (segment.Region, error) {
	if s.smoothed == nil {
		return segment.Region{}, ErrNoVolume
	}
	if !s.annotation.Complete() {
		return segment.Region{}, segment.ErrNoROI
	}

	hr, _ := s.annotation.HeightRange()
	return s.env.Engine.Region(s.smoothed, s.annotation.Contour(), hr)
}

// SetThreshold segments the lesion. The threshold is only accepted once both
// annotation slots are filled.
func (s *Session) SetThreshold(ctx context.Context, th segment.Threshold) (segment.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.smoothed == nil {
		return segment.Result{}, ErrNoVolume
	}
	if !s.annotation.Complete() {
		return segment.Result{}, segment.ErrNoROI
	}

	th = th.Sorted()
	res := s.env.Engine.Segment(s.smoothed, &s.annotation, th)

	s.threshold = &th
	s.result = &res
	s.lesion = nil

	if !res.Absent() {
		s.record(ctx, res)
	}

	return res, nil
}

func (s *Session) record(ctx context.Context, res segment.Result) {
	if s.env.Findings == nil {
		return
	}

	_, err := s.env.Findings.Record(ctx, findings.Finding{
		CaseID:      s.caseValue,
		SessionID:   s.ID,
		MinHU:       res.Threshold.Min,
		MaxHU:       res.Threshold.Max,
		TopSlice:    res.Top,
		BottomSlice: res.Bottom,
		Voxels:      res.VoxelCount,
		VolumeMM3:   res.VolumeMM3,
		Impression:  res.Impression,
	})
	if err != nil {
		s.env.log().WithError(err).WithField("case", s.caseValue).Warnln("Could not record finding")
	}
}

// Result returns the last segmentation, if any.
func (s *Session) Result() (segment.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return segment.Result{}, false
	}
	return *s.result, true
}

// OverviewMesh is the bone surface of the loaded volume. It is computed once
// per volume.
func (s *Session) OverviewMesh() (mesh.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.smoothed == nil {
		return mesh.Result{}, ErrNoVolume
	}
	if s.overview == nil {
		r := s.env.Meshes.FromVolume(s.smoothed, s.env.OverviewLevel, s.env.OverviewStep)
		s.overview = &r
	}

	return *s.overview, nil
}

// LesionMesh is the smoothed surface of the current mask. Without a mask it
// is an absent result.
func (s *Session) LesionMesh(ctx context.Context) (mesh.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.smoothed == nil {
		return mesh.Result{}, ErrNoVolume
	}
	if s.result == nil || s.result.Mask == nil {
		return mesh.Result{Absent: true, Reason: "no lesion"}, nil
	}
	if s.lesion == nil {
		r := s.env.Meshes.FromMask(ctx, s.result.Mask, s.smoothed.Spacing, s.env.LesionStep, s.env.LesionSmoothing)
		s.lesion = &r
	}

	return *s.lesion, nil
}

// MaskRLE run-length encodes the current mask in label IDs.
func (s *Session) MaskRLE() ([]byte, [3]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil || s.result.Mask == nil {
		return nil, [3]int{}, segment.ErrNoROI
	}

	return s.env.Labels.EncodeMaskRLE(s.result.Mask), s.result.Mask.Shape(), nil
}

// Ask answers a chat question. The context is captured under the lock, the
// remote call runs without it and the exchange is committed only if no newer
// question was answered in the meantime.
func (s *Session) Ask(ctx context.Context, question string) (chat.Reply, bool) {
	s.mu.Lock()
	actx := s.analysisContext()
	ticket := s.conversation.Begin()
	s.mu.Unlock()

	reply := s.env.Assistant.Answer(ctx, question, actx, ticket.History)

	s.mu.Lock()
	defer s.mu.Unlock()

	return reply, s.conversation.Commit(ticket, question, reply.Text)
}

func (s *Session) History() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation.Turns()
}

// AnalysisContext is the snapshot handed to the chat assistant.
func (s *Session) AnalysisContext() *chat.AnalysisContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.analysisContext()
}

func (s *Session) analysisContext() *chat.AnalysisContext {
	if s.caseValue == "" {
		return &chat.AnalysisContext{}
	}

	info := s.info
	actx := &chat.AnalysisContext{
		PatientNumber:  info.PatientNumber,
		Age:            info.Age,
		Gender:         info.Gender,
		Diagnosis:      info.Diagnosis(),
		Fracture:       info.Fracture,
		TotalSlices:    info.TotalSlices,
		AffectedSlices: info.AffectedSlices,
	}
	for _, ht := range patient.HemorrhageTypes {
		if d, ok := info.Detailed[ht.Name]; ok {
			actx.Detailed = append(actx.Detailed, chat.Detail{Name: ht.Name, AffectedSlices: d.AffectedSlices, Percentage: d.Percentage})
		}
	}

	res := s.result
	if res == nil || res.Mask == nil {
		return actx
	}

	actx.HasAnalysis = true
	actx.RealDiagnosis = info.Diagnosis()
	actx.Impression = res.Impression
	actx.HURange = &chat.HURange{Min: res.Threshold.Min, Max: res.Threshold.Max}
	actx.LesionVolumeMM3 = res.VolumeMM3
	if min, max, ok := res.Mask.Bounds(); ok {
		actx.SliceRange = &chat.SliceRange{Start: min.Z, End: max.Z}
	}
	actx.LearningPoint = segment.LearningPoint

	return actx
}
