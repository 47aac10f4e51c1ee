package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"runtime"
	"strings"

	"github.com/gorilla/mux"

	"github.com/carbocation/ctlesion/annotation"
	"github.com/carbocation/ctlesion/chat"
	"github.com/carbocation/ctlesion/compileinfo"
	"github.com/carbocation/ctlesion/findings"
	"github.com/carbocation/ctlesion/mesh"
	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/session"
	"github.com/carbocation/ctlesion/volume"
)

// Request bodies are small JSON documents; anything larger is a mistake.
const maxBody = 1 << 20

var errMeshKind = errors.New("unknown mesh kind")

func (h *handler) Index(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	if !s.State().Loaded {
		h.loadFirstCase(r, s)
	}

	var legend []overlay.Label
	for _, l := range overlay.DefaultLabels().Sorted() {
		if l.Label != overlay.LabelBackground {
			legend = append(legend, l)
		}
	}

	output := struct {
		Cases  []patient.Case
		State  session.State
		Legend []overlay.Label
	}{
		h.Global.Cases(),
		s.State(),
		legend,
	}

	Render(h, w, r, h.Global.Site, "index.html", output, nil)
}

// loadFirstCase fills a fresh session with the first catalog entry. A failure
// leaves the page with its placeholders.
func (h *handler) loadFirstCase(r *http.Request, s *session.Session) {
	cases := h.Global.Cases()
	if len(cases) == 0 {
		return
	}

	if err := s.LoadCase(r.Context(), cases[0].Value); err != nil {
		h.log.Println("Could not load the first case:", err)
	}
}

func (h *handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases := h.Global.Cases()
	if r.URL.Query().Get("refresh") == "1" {
		cases = h.Global.RefreshCases()
	}

	Render(h, w, r, "", "", cases, JSONOpts())
}

func (h *handler) State(w http.ResponseWriter, r *http.Request) {
	Render(h, w, r, "", "", h.Session(w, r).State(), JSONOpts())
}

func (h *handler) SelectCase(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	var body struct {
		Case string `json:"case"`
	}
	if err := decodeBody(r, &body); err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}
	if body.Case == "" {
		JSONError(h, w, r, fmt.Errorf("no case given"), http.StatusBadRequest)
		return
	}

	if err := s.LoadCase(r.Context(), body.Case); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			code = http.StatusNotFound
		}
		JSONError(h, w, r, err, code)
		return
	}

	h.entry.WithField("session", s.ID).WithField("case", body.Case).Infoln("Loaded case")

	Render(h, w, r, "", "", s.State(), JSONOpts())
}

func (h *handler) MoveSlice(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	axis, err := volume.ParseAxis(mux.Vars(r)["plane"])
	if err != nil {
		JSONError(h, w, r, err, http.StatusNotFound)
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if err := decodeBody(r, &body); err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}

	index, err := s.SetSlice(axis, body.Index)
	if err != nil {
		JSONError(h, w, r, err, statusFor(err))
		return
	}

	Render(h, w, r, "", "", struct {
		Plane string `json:"plane"`
		Index int    `json:"index"`
	}{axis.String(), index}, JSONOpts())
}

func (h *handler) SliceImage(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	axis, err := volume.ParseAxis(mux.Vars(r)["plane"])
	if err != nil {
		HTTPError(h, w, r, err, http.StatusNotFound)
		return
	}

	img, err := s.SliceImage(axis)
	if err != nil {
		HTTPError(h, w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := overlay.EncodePNG(&buf, img); err != nil {
		HTTPError(h, w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *handler) Annotate(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	axis, err := volume.ParseAxis(mux.Vars(r)["plane"])
	if err != nil {
		JSONError(h, w, r, err, http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}

	ev, err := annotation.ParseRelayout(data)
	if err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}

	changed, err := s.ApplyAnnotation(axis, ev)
	if err != nil {
		JSONError(h, w, r, err, statusFor(err))
		return
	}
	if changed {
		h.entry.WithField("session", s.ID).WithField("plane", axis.String()).Debugln("Annotation changed")
	}

	Render(h, w, r, "", "", s.State(), JSONOpts())
}

func (h *handler) Histogram(w http.ResponseWriter, r *http.Request) {
	hist, th, err := h.Session(w, r).Histogram()
	if err != nil {
		JSONError(h, w, r, err, statusFor(err))
		return
	}

	Render(h, w, r, "", "", struct {
		Histogram *segment.Histogram `json:"histogram"`
		Centers   []float64          `json:"centers"`
		Threshold *segment.Threshold `json:"threshold,omitempty"`
	}{hist, hist.Centers(), th}, JSONOpts())
}

func (h *handler) HistogramImage(w http.ResponseWriter, r *http.Request) {
	hist, th, err := h.Session(w, r).Histogram()
	if err != nil {
		HTTPError(h, w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := hist.RenderPNG(&buf, th); err != nil {
		HTTPError(h, w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *handler) Threshold(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	var th segment.Threshold
	if err := decodeBody(r, &th); err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}

	res, err := s.SetThreshold(r.Context(), th)
	if err != nil {
		JSONError(h, w, r, err, statusFor(err))
		return
	}

	h.entry.WithField("session", s.ID).
		WithField("min", res.Threshold.Min).
		WithField("max", res.Threshold.Max).
		WithField("voxels", res.VoxelCount).
		WithField("absence", res.Absence).
		Infoln("Segmented")

	Render(h, w, r, "", "", s.State(), JSONOpts())
}

func (h *handler) meshFor(r *http.Request, s *session.Session) (mesh.Result, error) {
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "overview":
		return s.OverviewMesh()
	case "lesion":
		return s.LesionMesh(r.Context())
	default:
		return mesh.Result{}, fmt.Errorf("%w %q", errMeshKind, kind)
	}
}

func (h *handler) Mesh(w http.ResponseWriter, r *http.Request) {
	res, err := h.meshFor(r, h.Session(w, r))
	if err != nil {
		JSONError(h, w, r, err, statusFor(err))
		return
	}

	out := struct {
		Absent bool         `json:"absent"`
		Reason string       `json:"reason,omitempty"`
		Mesh   *mesh.Plotly `json:"mesh,omitempty"`
	}{Absent: res.Absent, Reason: res.Reason}
	if !res.Absent {
		p := mesh.ToPlotly(res.Mesh)
		out.Mesh = &p
	}

	Render(h, w, r, "", "", out, JSONOpts())
}

func (h *handler) MeshSTL(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	res, err := h.meshFor(r, s)
	if err != nil {
		HTTPError(h, w, r, err, statusFor(err))
		return
	}
	if res.Absent {
		HTTPError(h, w, r, fmt.Errorf("no mesh: %s", res.Reason), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := mesh.WriteSTL(&buf, res.Mesh); err != nil {
		HTTPError(h, w, r, err)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("kind"))
	if name == "" {
		name = "overview"
	}

	w.Header().Set("Content-Type", "model/stl")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.stl"`, name))
	w.Write(buf.Bytes())
}

func (h *handler) MaskRLE(w http.ResponseWriter, r *http.Request) {
	data, shape, err := h.Session(w, r).MaskRLE()
	if err != nil {
		HTTPError(h, w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Mask-Shape", fmt.Sprintf("%d,%d,%d", shape[0], shape[1], shape[2]))
	w.Header().Set("Content-Disposition", `attachment; filename="mask.rle"`)
	w.Write(data)
}

type chatResponse struct {
	Reply     string      `json:"reply"`
	Kind      string      `json:"kind"`
	Failure   string      `json:"failure,omitempty"`
	Committed bool        `json:"committed"`
	History   []chat.Turn `json:"history"`
}

func (h *handler) Chat(w http.ResponseWriter, r *http.Request) {
	s := h.Session(w, r)

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		JSONError(h, w, r, err, http.StatusBadRequest)
		return
	}
	body.Message = strings.TrimSpace(body.Message)
	if body.Message == "" {
		JSONError(h, w, r, fmt.Errorf("empty message"), http.StatusBadRequest)
		return
	}

	reply, committed := s.Ask(r.Context(), body.Message)

	out := chatResponse{
		Reply:     reply.Text,
		Kind:      reply.Kind.String(),
		Committed: committed,
		History:   s.History(),
	}
	if reply.Failure != chat.FailureNone {
		out.Failure = reply.Failure.String()
	}

	Render(h, w, r, "", "", out, JSONOpts())
}

func (h *handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	Render(h, w, r, "", "", h.Session(w, r).History(), JSONOpts())
}

func (h *handler) Findings(w http.ResponseWriter, r *http.Request) {
	if h.Global.Findings == nil {
		JSONError(h, w, r, fmt.Errorf("the findings log is disabled"), http.StatusNotFound)
		return
	}

	list, err := h.Global.Findings.ListByCase(r.Context(), mux.Vars(r)["case"])
	if err != nil {
		JSONError(h, w, r, err)
		return
	}
	if list == nil {
		list = []findings.Finding{}
	}

	Render(h, w, r, "", "", list, JSONOpts())
}

func (h *handler) Goroutines(w http.ResponseWriter, r *http.Request) {
	goroutines := fmt.Sprintf("%d goroutines are currently active\n", runtime.NumGoroutine())

	w.Write([]byte(goroutines))
}

func (h *handler) Version(w http.ResponseWriter, r *http.Request) {
	Render(h, w, r, "", "", compileinfo.Get(), JSONOpts())
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}

// statusFor maps the session's absence errors onto HTTP codes. An incomplete
// annotation is a conflict with the current state, not a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoVolume):
		return http.StatusNotFound
	case errors.Is(err, segment.ErrNoROI):
		return http.StatusConflict
	case errors.Is(err, annotation.ErrWrongPlane), errors.Is(err, errMeshKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
