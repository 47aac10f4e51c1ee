package overlay

import (
	"fmt"
	"image"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/tj/go-rle"
	"golang.org/x/image/draw"
)

// A Label tracks the segmentation ID with the human-identifiable Label and
// human-interpretable color (in RGB hex, e.g., #FF0000 for red).
type Label struct {
	Label     string
	ID        uint   `json:"id"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// LabelMap ([string label name]Label) keeps track of the relationship between
// human-visible colors and the segmentation ID of that label.
type LabelMap map[string]Label

const (
	LabelBackground = "background"
	LabelLesion     = "lesion"
	LabelContour    = "contour"
)

// DefaultLabels is the palette used for slice overlays.
func DefaultLabels() LabelMap {
	return LabelMap{
		LabelBackground: {ID: 0, Color: "#000000"},
		LabelLesion:     {ID: 1, Color: "#ff3030", SortOrder: 1},
		LabelContour:    {ID: 2, Color: "#00ffff", SortOrder: 2},
	}
}

// Composite paints the set pixels of a mask plane over a greyscale slice in
// the color of the named label, at the given opacity (0-255). The background
// label is never painted.
func (l LabelMap) Composite(base image.Image, rows, cols int, plane []bool, labelName string, opacity uint8) (*image.RGBA, error) {
	b := base.Bounds()
	if b.Dx() != cols || b.Dy() != rows {
		return nil, fmt.Errorf("mask plane is %dx%d but the image is %dx%d", cols, rows, b.Dx(), b.Dy())
	}
	if len(plane) != rows*cols {
		return nil, fmt.Errorf("mask plane has %d pixels, expected %d", len(plane), rows*cols)
	}

	out := image.NewRGBA(image.Rect(0, 0, cols, rows))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	lab, exists := l[labelName]
	if !exists {
		return nil, pfx.Err(fmt.Errorf("label %q is not in the label map %+v", labelName, l))
	}
	if lab.ID == 0 {
		return out, nil
	}

	col, err := rgbaFromColorCode(lab.Color)
	if err != nil {
		return nil, err
	}

	alpha := image.NewAlpha(out.Bounds())
	for i, set := range plane {
		if set {
			alpha.Pix[(i/cols)*alpha.Stride+i%cols] = opacity
		}
	}

	draw.DrawMask(out, out.Bounds(), &image.Uniform{C: col}, image.Point{}, alpha, image.Point{}, draw.Over)

	return out, nil
}

// EncodeMaskRLE run-length encodes a mask in its native voxel order, storing
// the lesion label ID for set voxels and the background ID elsewhere.
func (l LabelMap) EncodeMaskRLE(m *Mask) []byte {
	fg := int64(l[LabelLesion].ID)
	bg := int64(l[LabelBackground].ID)

	ids := make([]int64, len(m.Data))
	for i, v := range m.Data {
		if v {
			ids[i] = fg
		} else {
			ids[i] = bg
		}
	}

	return rle.EncodeInt64(ids)
}

// DecodeMaskRLE reverses EncodeMaskRLE for a mask of the given shape.
func (l LabelMap) DecodeMaskRLE(rleBytes []byte, depth, height, width int) (*Mask, error) {
	slc, err := rle.DecodeInt64(rleBytes)
	if err != nil {
		return nil, err
	}

	m := NewMask(depth, height, width)
	if len(slc) != len(m.Data) {
		return nil, fmt.Errorf("decoded %d voxels, expected %d", len(slc), len(m.Data))
	}

	fg := int64(l[LabelLesion].ID)
	for i, v := range slc {
		m.Data[i] = v == fg
	}

	return m, nil
}

// Valid ensures that the LabelMap is valid by testing that it is bijective.
func (l LabelMap) Valid() bool {
	inverse := make(map[uint]string)
	for k, v := range l {
		inverse[v.ID] = k
	}

	return len(l) == len(inverse)
}

func (l LabelMap) Sorted() []Label {
	out := make([]Label, 0, len(l))

	for k, v := range l {
		v.Label = k
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		// If SortOrder is defined and different, use it:
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}

		// Otherwise fall back to the ID
		return out[i].ID < out[j].ID
	})

	return out
}
