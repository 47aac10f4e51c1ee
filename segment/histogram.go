package segment

import (
	"fmt"
	"io"
	"math"

	hist2 "github.com/grd/histogram"
	"github.com/montanaflynn/stats"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/carbocation/ctlesion/volume"
)

// DefaultBins is the number of histogram bins used by the web view.
const DefaultBins = 256

// ROIIntensities gathers the smoothed intensities inside the prism.
func ROIIntensities(smoothed *volume.Volume, region Region) []float64 {
	out := make([]float64, 0, region.Area()*region.Slices())

	for z := region.Top; z < region.Bottom && z < smoothed.Depth; z++ {
		for y := 0; y < smoothed.Height; y++ {
			for x := 0; x < smoothed.Width; x++ {
				if region.Polygon[y*smoothed.Width+x] {
					out = append(out, float64(smoothed.At(z, y, x)))
				}
			}
		}
	}

	return out
}

// ROIStats summarizes the intensities of the prism.
type ROIStats struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
}

// Histogram holds fixed-width bin counts over the prism intensities.
type Histogram struct {
	Start    float64  `json:"start"`
	BinWidth float64  `json:"bin_width"`
	Counts   []int    `json:"counts"`
	Stats    ROIStats `json:"stats"`
}

// NewHistogram bins values between their minimum and maximum. It returns
// ErrNoROI for an empty sample.
func NewHistogram(values []float64, bins int) (*Histogram, error) {
	if len(values) == 0 {
		return nil, ErrNoROI
	}
	if bins < 1 {
		bins = DefaultBins
	}

	st, err := summarize(values)
	if err != nil {
		return nil, err
	}

	width := (st.Max - st.Min) / float64(bins)
	if width <= 0 {
		width = 1
	}

	// One extra edge so that Get(bins-1) is valid however the edges are counted.
	hg, err := hist2.NewHistogram(hist2.Range(st.Min, uint(bins+1), width))
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}

	out := &Histogram{
		Start:    st.Min,
		BinWidth: width,
		Counts:   make([]int, bins),
		Stats:    st,
	}

	for _, v := range values {
		// The maximum lands on the closing edge; count it in the last bin.
		if v >= st.Min+width*float64(bins) {
			out.Counts[bins-1]++
			continue
		}
		hg.Add(v)
	}

	for i := 0; i < bins; i++ {
		out.Counts[i] += hg.Get(i)
	}

	return out, nil
}

// Total is the number of counted values.
func (h *Histogram) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Centers returns the midpoint intensity of each bin.
func (h *Histogram) Centers() []float64 {
	out := make([]float64, len(h.Counts))
	for i := range out {
		out[i] = h.Start + (float64(i)+0.5)*h.BinWidth
	}
	return out
}

// RenderPNG plots the histogram. When th is non-nil its bounds are drawn as
// vertical markers.
func (h *Histogram) RenderPNG(w io.Writer, th *Threshold) error {
	counts := make([]float64, len(h.Counts))
	maxCount := 0.0
	for i, c := range h.Counts {
		counts[i] = float64(c)
		maxCount = math.Max(maxCount, counts[i])
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "HU",
			XValues: h.Centers(),
			YValues: counts,
		},
	}

	if th != nil {
		sorted := th.Sorted()
		for _, x := range []float64{sorted.Min, sorted.Max} {
			series = append(series, chart.ContinuousSeries{
				XValues: []float64{x, x},
				YValues: []float64{0, maxCount},
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			})
		}
	}

	graph := chart.Chart{
		Width:  512,
		Height: 256,
		XAxis: chart.XAxis{
			Name: "HU",
		},
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
		},
		Series: series,
	}

	return graph.Render(chart.PNG, w)
}

func summarize(values []float64) (ROIStats, error) {
	data := stats.Float64Data(values)
	out := ROIStats{N: len(values)}

	var err error
	if out.Min, err = data.Min(); err != nil {
		return out, err
	}
	if out.Max, err = data.Max(); err != nil {
		return out, err
	}
	if out.Mean, err = data.Mean(); err != nil {
		return out, err
	}
	if out.Median, err = data.Median(); err != nil {
		return out, err
	}
	if out.P5, err = data.Percentile(5); err != nil {
		return out, err
	}
	if out.P95, err = data.Percentile(95); err != nil {
		return out, err
	}

	return out, nil
}
