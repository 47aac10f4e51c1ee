package overlay

import (
	"bufio"
	"image"
	"image/png"
	"io"
)

// EncodePNG writes img to w with the fastest compression; slices are
// re-rendered on every slider move.
func EncodePNG(w io.Writer, img image.Image) error {
	fw := bufio.NewWriter(w)

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(fw, img); err != nil {
		return err
	}

	return fw.Flush()
}
