package mesh

import (
	"io"

	"github.com/unixpickle/model3d/model3d"
)

// Plotly is the vertex/face layout of a plotly mesh3d trace.
type Plotly struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
	I []int     `json:"i"`
	J []int     `json:"j"`
	K []int     `json:"k"`
}

// ToPlotly indexes the mesh's vertices and lists each triangle by index.
// Shared vertices are emitted once.
func ToPlotly(m *model3d.Mesh) Plotly {
	var out Plotly
	if m == nil {
		return out
	}

	index := make(map[model3d.Coord3D]int)
	vertex := func(c model3d.Coord3D) int {
		if i, ok := index[c]; ok {
			return i
		}
		i := len(out.X)
		index[c] = i
		out.X = append(out.X, c.X)
		out.Y = append(out.Y, c.Y)
		out.Z = append(out.Z, c.Z)
		return i
	}

	for _, t := range m.TriangleSlice() {
		out.I = append(out.I, vertex(t[0]))
		out.J = append(out.J, vertex(t[1]))
		out.K = append(out.K, vertex(t[2]))
	}

	return out
}

// WriteSTL writes a binary STL with coordinates in mm.
func WriteSTL(w io.Writer, m *model3d.Mesh) error {
	_, err := w.Write(model3d.EncodeSTL(m.TriangleSlice()))
	return err
}
