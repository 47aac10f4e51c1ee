package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/carbocation/ctlesion/annotation"
	"github.com/carbocation/ctlesion/chat"
	"github.com/carbocation/ctlesion/findings"
	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/volume"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []findings.Finding
}

func (r *memRecorder) Record(_ context.Context, f findings.Finding) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, f)
	return int64(len(r.rows)), nil
}

// gatedBackend answers immediately unless the question mentions "천천히", in
// which case it signals started and waits for release.
type gatedBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Complete(ctx context.Context, req chat.Request) (string, error) {
	if strings.Contains(req.Question, "천천히") {
		close(b.started)
		select {
		case <-b.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "답변: " + req.Question, nil
}

// blobVolume is 8x20x20 at 20 HU with a 60 HU block over z 2..5, y/x 6..13.
// A (1,3,3) median removes the four corners of each slice of the block,
// leaving 4*60 voxels.
func blobVolume(t *testing.T) *volume.Volume {
	t.Helper()
	v, err := volume.New(8, 20, 20, [3]float64{2, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for z := 0; z < 8; z++ {
		for y := 0; y < 20; y++ {
			for x := 0; x < 20; x++ {
				val := float32(20)
				if z >= 2 && z <= 5 && y >= 6 && y <= 13 && x >= 6 && x <= 13 {
					val = 60
				}
				v.Set(z, y, x, val)
			}
		}
	}
	return v
}

func patient49() patient.Info {
	return patient.Info{
		PatientNumber:   "49",
		Age:             "35",
		Gender:          "Male",
		HemorrhageTypes: []string{"경막외출혈"},
		Detailed: map[string]patient.TypeDetail{
			"경막외출혈": {AffectedSlices: 2, Percentage: 50, Slices: []int{2, 3}},
		},
		TotalSlices:    4,
		AffectedSlices: 2,
	}
}

func testEnv(rec Recorder, backend chat.Backend) *Env {
	log, _ := test.NewNullLogger()
	return &Env{
		Log:       log,
		Workers:   2,
		Findings:  rec,
		Assistant: &chat.Assistant{Backend: backend, Timeout: 5 * time.Second, Log: log},
	}
}

func axialContour() annotation.Event {
	// Display mm; covers pixels 3..17 on both axes.
	path := annotation.FormatPath([]annotation.Point{{X: 1.1, Y: 1.1}, {X: 8.9, Y: 1.1}, {X: 8.9, Y: 8.9}, {X: 1.1, Y: 8.9}})
	return annotation.Event{HasShapes: true, Shapes: []annotation.Shape{{Type: "path", Path: path}}}
}

func sagittalRange(y0, y1 float64) annotation.Event {
	x0, x1 := 0.0, 10.0
	return annotation.Event{HasShapes: true, Shapes: []annotation.Shape{{Type: "rect", X0: &x0, X1: &x1, Y0: &y0, Y1: &y1}}}
}

func TestSessionPipeline(t *testing.T) {
	ctx := context.Background()
	rec := &memRecorder{}
	m := NewManager(testEnv(rec, &gatedBackend{}), time.Hour)
	s := m.Create()

	if _, err := s.SetSlice(volume.Axial, 3); !errors.Is(err, ErrNoVolume) {
		t.Errorf("slice without volume: got %v", err)
	}
	if _, err := s.SetThreshold(ctx, segment.Threshold{Min: 0, Max: 100}); !errors.Is(err, ErrNoVolume) {
		t.Errorf("threshold without volume: got %v", err)
	}
	if got := s.AnalysisContext(); got.PatientNumber != "" {
		t.Errorf("context without case: got %+v", got)
	}

	if err := s.SetVolume(ctx, blobVolume(t), "49.nii", patient49()); err != nil {
		t.Fatal(err)
	}

	st := s.State()
	if st.Axial != (SlicerState{Index: 4, Min: 0, Max: 7}) || st.Sagittal != (SlicerState{Index: 10, Min: 0, Max: 19}) {
		t.Errorf("slicers: axial %+v sagittal %+v", st.Axial, st.Sagittal)
	}
	if got, _ := s.SetSlice(volume.Axial, 99); got != 7 {
		t.Errorf("clamped axial index: got %d", got)
	}
	if got, _ := s.SetSlice(volume.Sagittal, -3); got != 0 {
		t.Errorf("clamped sagittal index: got %d", got)
	}

	if _, err := s.SetThreshold(ctx, segment.Threshold{Min: 50, Max: 100}); !errors.Is(err, segment.ErrNoROI) {
		t.Errorf("threshold before annotation: got %v", err)
	}
	if _, _, err := s.Histogram(); !errors.Is(err, segment.ErrNoROI) {
		t.Errorf("histogram before annotation: got %v", err)
	}

	if changed, err := s.ApplyAnnotation(volume.Axial, axialContour()); err != nil || !changed {
		t.Fatalf("axial contour: %v %v", changed, err)
	}
	// y 2..14 mm over 2 mm slices selects [1, 7)
	if changed, err := s.ApplyAnnotation(volume.Sagittal, sagittalRange(14, 2)); err != nil || !changed {
		t.Fatalf("sagittal range: %v %v", changed, err)
	}

	h, th, err := s.Histogram()
	if err != nil {
		t.Fatal(err)
	}
	if h.Total() != 15*15*6 || th != nil {
		t.Errorf("histogram: total %d threshold %v", h.Total(), th)
	}

	res, err := s.SetThreshold(ctx, segment.Threshold{Min: 100, Max: 50})
	if err != nil {
		t.Fatal(err)
	}
	if res.Absent() || res.VoxelCount != 240 {
		t.Fatalf("got %d voxels (%s), want 240", res.VoxelCount, res.Absence)
	}
	if len(rec.rows) != 1 || rec.rows[0].CaseID != "49.nii" || rec.rows[0].SessionID != s.ID || rec.rows[0].Voxels != 240 {
		t.Errorf("recorded findings: %+v", rec.rows)
	}

	want := &chat.AnalysisContext{
		PatientNumber:   "49",
		Age:             "35",
		Gender:          "Male",
		Diagnosis:       "경막외출혈",
		Detailed:        []chat.Detail{{Name: "경막외출혈", AffectedSlices: 2, Percentage: 50}},
		TotalSlices:     4,
		AffectedSlices:  2,
		HasAnalysis:     true,
		RealDiagnosis:   "경막외출혈",
		Impression:      segment.ImpressionHemorrhage,
		HURange:         &chat.HURange{Min: 50, Max: 100},
		LesionVolumeMM3: 240 * 2 * 0.5 * 0.5,
		SliceRange:      &chat.SliceRange{Start: 2, End: 5},
		LearningPoint:   segment.LearningPoint,
	}
	if diff := cmp.Diff(want, s.AnalysisContext()); diff != "" {
		t.Errorf("analysis context (-want +got):\n%s", diff)
	}

	if _, err := s.SetSlice(volume.Axial, 3); err != nil {
		t.Fatal(err)
	}
	img, err := s.SliceImage(volume.Axial)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("axial image: %v", b)
	}
	sag, err := s.SliceImage(volume.Sagittal)
	if err != nil {
		t.Fatal(err)
	}
	// 8 slices of 2 mm against 0.5 mm columns
	if b := sag.Bounds(); b.Dx() != 20 || b.Dy() != 32 {
		t.Errorf("sagittal image: %v", b)
	}

	rle, shape, err := s.MaskRLE()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := overlay.DefaultLabels().DecodeMaskRLE(rle, shape[0], shape[1], shape[2])
	if err != nil || decoded.Count() != 240 {
		t.Errorf("mask round trip: %v, %v", decoded, err)
	}

	if st := s.State(); st.Lesion == nil || st.Lesion.Voxels != 240 || st.Threshold == nil || *st.Threshold != (segment.Threshold{Min: 50, Max: 100}) {
		t.Errorf("state: %+v", st)
	}

	// Moving the height range invalidates the threshold and the mask.
	y1 := 12.0
	if changed, err := s.ApplyAnnotation(volume.Sagittal, annotation.Event{Y1Edit: &y1}); err != nil || !changed {
		t.Fatalf("y1 edit: %v %v", changed, err)
	}
	if _, ok := s.Result(); ok {
		t.Error("mask survived an annotation change")
	}
	if got := s.AnalysisContext(); got.HasAnalysis {
		t.Error("context still reports an analysis")
	}
	if lesion, err := s.LesionMesh(ctx); err != nil || !lesion.Absent {
		t.Errorf("lesion mesh without mask: %+v %v", lesion, err)
	}

	// A new volume clears the annotation.
	if err := s.SetVolume(ctx, blobVolume(t), "50.nii", patient.Info{PatientNumber: "50"}); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); st.HasContour || st.HasHeightRange || st.Case != "50.nii" {
		t.Errorf("state after reload: %+v", st)
	}
}

func TestAskCommitsAndDiscardsStale(t *testing.T) {
	backend := &gatedBackend{started: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(testEnv(nil, backend), time.Hour)
	s := m.Create()

	if err := s.SetVolume(context.Background(), blobVolume(t), "49.nii", patient49()); err != nil {
		t.Fatal(err)
	}

	reply, ok := s.Ask(context.Background(), "환자 정보")
	if !ok || reply.Kind != chat.Ruled || !strings.Contains(reply.Text, "환자 번호: 49") {
		t.Fatalf("rule reply: %v %+v", ok, reply)
	}

	type answer struct {
		reply     chat.Reply
		committed bool
	}
	slow := make(chan answer)
	go func() {
		r, ok := s.Ask(context.Background(), "뇌출혈을 천천히 설명해줘")
		slow <- answer{r, ok}
	}()

	// The slow question holds its ticket once it reaches the backend.
	select {
	case <-backend.started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow question never reached the backend")
	}

	fast, ok := s.Ask(context.Background(), "경막외출혈이 뭔가요?")
	if !ok || fast.Kind != chat.Remote {
		t.Fatalf("fast reply: %v %+v", ok, fast)
	}

	close(backend.release)
	late := <-slow
	if late.committed || late.reply.Kind != chat.Remote {
		t.Errorf("slow reply: %+v", late)
	}

	var questions []string
	for _, turn := range s.History() {
		questions = append(questions, turn.User)
	}
	if diff := cmp.Diff([]string{"환자 정보", "경막외출혈이 뭔가요?"}, questions); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
}

func TestOlderCaseLoadIsDropped(t *testing.T) {
	m := NewManager(testEnv(nil, nil), time.Hour)
	s := m.Create()
	ctx := context.Background()

	first := s.beginLoad()
	second := s.beginLoad()

	if err := s.finishLoad(ctx, second, blobVolume(t), "51.nii", patient.Info{PatientNumber: "51"}); err != nil {
		t.Fatal(err)
	}
	if err := s.finishLoad(ctx, first, blobVolume(t), "49.nii", patient49()); err != nil {
		t.Fatal(err)
	}
	if got := s.State().Case; got != "51.nii" {
		t.Errorf("case: got %q, want the newer selection", got)
	}

	// A direct volume swap supersedes a load still reading its file.
	pending := s.beginLoad()
	if err := s.SetVolume(ctx, blobVolume(t), "49.nii", patient49()); err != nil {
		t.Fatal(err)
	}
	if err := s.finishLoad(ctx, pending, blobVolume(t), "51.nii", patient.Info{}); err != nil {
		t.Fatal(err)
	}
	if got := s.State().Case; got != "49.nii" {
		t.Errorf("case: got %q", got)
	}
}

func TestManagerEvictsIdle(t *testing.T) {
	m := NewManager(testEnv(nil, nil), time.Hour)
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }

	a := m.Create()
	b := m.Create()
	if a.ID == b.ID || m.Len() != 2 {
		t.Fatalf("ids %q %q, len %d", a.ID, b.ID, m.Len())
	}

	now = now.Add(45 * time.Minute)
	if _, ok := m.Get(b.ID); !ok {
		t.Fatal("b missing")
	}

	now = now.Add(30 * time.Minute)
	if n := m.Evict(); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if _, ok := m.Get(a.ID); ok {
		t.Error("a should be gone")
	}

	if s, created := m.GetOrCreate(a.ID); !created || s.ID == a.ID {
		t.Errorf("GetOrCreate for an evicted id: %v %q", created, s.ID)
	}
	if s, created := m.GetOrCreate(b.ID); created || s != b {
		t.Error("GetOrCreate should return the live session")
	}
}
