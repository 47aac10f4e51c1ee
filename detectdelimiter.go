package ctlesion

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. Comma is assumed when
// nothing can be detected.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 && len(delimiters[0]) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// DetermineDelimiterFromBytes is DetermineDelimiter over an in-memory file.
// Only the leading lines are inspected; metadata files carry multi-line
// headers that the detector handles poorly when fed the whole body.
func DetermineDelimiterFromBytes(data []byte, sampleLines int) rune {
	sample := data
	if sampleLines > 0 {
		end := 0
		for i := 0; i < sampleLines; i++ {
			next := bytes.IndexByte(sample[end:], '\n')
			if next < 0 {
				end = len(sample)
				break
			}
			end += next + 1
		}
		sample = sample[:end]
	}

	return DetermineDelimiter(bytes.NewReader(sample))
}
