package overlay

import (
	"image"

	"github.com/carbocation/ctlesion/volume"
)

// Layer is one boolean plane painted over a slice.
type Layer struct {
	Label   string
	Opacity uint8
	Plane   []bool
}

// RenderPlane windows a volume plane to grey, paints each non-empty layer in
// order and corrects the aspect ratio to physical units.
func (l LabelMap) RenderPlane(p volume.Plane, w volume.Window, layers ...Layer) (image.Image, error) {
	var img image.Image = p.Image(w)

	for _, layer := range layers {
		if layer.Plane == nil {
			continue
		}

		painted, err := l.Composite(img, p.Rows, p.Cols, layer.Plane, layer.Label, layer.Opacity)
		if err != nil {
			return nil, err
		}
		img = painted
	}

	return RescaleToAspect(img, p.RowSpacing, p.ColSpacing), nil
}
