package overlay

import (
	"fmt"
	"math"
)

type CentralMoments struct {
	Bounds struct {
		TopLeft     Coord
		BottomRight Coord
	}
	Area     float64
	Centroid struct {
		X, Y float64
	}
	LongAxisOrientationRadians float64
	LongAxisPixels             float64
	ShortAxisPixels            float64
	Eccentricity               float64
}

// LargestAxialSlice returns the depth index whose axial cross-section holds
// the most voxels, and that count.
func (m *Mask) LargestAxialSlice() (z, count int) {
	z = -1
	plane := m.Height * m.Width

	for zz := 0; zz < m.Depth; zz++ {
		n := 0
		for _, v := range m.Data[zz*plane : (zz+1)*plane] {
			if v {
				n++
			}
		}
		if n > count {
			z, count = zz, n
		}
	}

	return z, count
}

// ComputeMoments fits an ellipse to the set pixels of the axial cross-section
// at depth z using image moments.
func (m *Mask) ComputeMoments(z int) (CentralMoments, error) {
	if z < 0 || z >= m.Depth {
		return CentralMoments{}, fmt.Errorf("slice %d is outside [0, %d)", z, m.Depth)
	}

	// Via https://en.wikipedia.org/wiki/Image_moment

	// Convention:
	// M* = raw moments
	// mu* = central moments

	// MX0Y0 is the area of the cross-section in pixels
	var MX0Y0 float64
	var MX0Y1 float64
	var MX1Y0 float64
	var MX1Y1 float64
	var MX2Y0 float64
	var MX0Y2 float64

	topLeft := Coord{X: m.Width, Y: m.Height}
	bottomRight := Coord{X: -1, Y: -1}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.At(z, y, x) {
				continue
			}

			topLeft = Coord{X: minInt(topLeft.X, x), Y: minInt(topLeft.Y, y)}
			bottomRight = Coord{X: maxInt(bottomRight.X, x), Y: maxInt(bottomRight.Y, y)}

			MX0Y0++
			MX0Y1 += float64(y)
			MX1Y0 += float64(x)
			MX1Y1 += float64(x * y)
			MX2Y0 += float64(x * x)
			MX0Y2 += float64(y * y)
		}
	}

	if MX0Y0 == 0 {
		return CentralMoments{}, fmt.Errorf("no pixels are set in slice %d", z)
	}

	meanX := MX1Y0 / MX0Y0
	meanY := MX0Y1 / MX0Y0

	muX1Y1 := MX1Y1 - meanX*MX0Y1
	muX2Y0 := MX2Y0 - meanX*MX1Y0
	muX0Y2 := MX0Y2 - meanY*MX0Y1

	// Second-order central moments, normalized by area
	muPrimeX2Y0 := muX2Y0 / MX0Y0
	muPrimeX0Y2 := muX0Y2 / MX0Y0
	muPrimeX1Y1 := muX1Y1 / MX0Y0

	eigenBase := muPrimeX2Y0 + muPrimeX0Y2
	eigenRoot := math.Sqrt(4*math.Pow(muPrimeX1Y1, 2.0) + math.Pow(muPrimeX2Y0-muPrimeX0Y2, 2.0))

	// See http://raphael.candelier.fr/?blog=Image%20Moments for the constants.
	// Rounding can push the minor eigenvalue slightly negative for lines.
	eigen1 := math.Sqrt(math.Max(0, 8*(eigenBase-eigenRoot))) // minor axis
	eigen2 := math.Sqrt(math.Max(0, 8*(eigenBase+eigenRoot))) // major axis

	var computedRadians float64
	if muPrimeX2Y0 != muPrimeX0Y2 {
		computedRadians = 0.5 * math.Atan(2*muPrimeX1Y1/(muPrimeX2Y0-muPrimeX0Y2))
	}

	eccentricity := 0.0
	if eigen2 > 0 {
		eccentricity = math.Sqrt(1 - eigen1/eigen2)
	}

	out := CentralMoments{
		Area:                       MX0Y0,
		LongAxisOrientationRadians: computedRadians,
		LongAxisPixels:             eigen2,
		ShortAxisPixels:            eigen1,
		Eccentricity:               eccentricity,
	}
	out.Bounds.TopLeft = topLeft
	out.Bounds.BottomRight = bottomRight
	out.Centroid.X = meanX
	out.Centroid.Y = meanY

	return out, nil
}
