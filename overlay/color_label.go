package overlay

import (
	"fmt"
	"image/color"

	"github.com/icza/gox/imagex/colorx"
)

// rgbaFromColorCode parses a #rrggbb (or #rgb) code into an opaque color. An
// empty code is the transparent background.
func rgbaFromColorCode(colorCode string) (color.RGBA, error) {
	// Special case the background
	if colorCode == "" || colorCode == "#" {
		return color.RGBA{0, 0, 0, 0}, nil
	}

	col, err := colorx.ParseHexColor(colorCode)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", colorCode, err)
	}

	return col, nil
}
