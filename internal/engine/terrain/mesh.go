package terrain

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// Mesh is a VertexSink that collects terrain vertices into memory.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
}

// NewMesh creates an empty mesh with room for capacity vertices.
func NewMesh(capacity int) *Mesh {
	return &Mesh{
		Vertices: make([]Vertex, 0, capacity),
		Bounds:   emptyBounds(),
	}
}

// Format reports StandardFormat.
func (m *Mesh) Format() VertexFormat {
	return StandardFormat
}

// AddVertex appends a vertex and grows the bounds.
func (m *Mesh) AddVertex(position, texcoord math.Vec3) {
	if len(m.Vertices) == 0 {
		m.Bounds = emptyBounds()
	}
	m.Vertices = append(m.Vertices, Vertex{
		Position: position.Array(),
		TexCoord: texcoord.Array(),
	})
	updateBounds(&m.Bounds, position)
}

// GridIndices returns the triangle list for a numXY by numXY grid filled in
// x-major order (vertex index xi*numXY + yi). Each cell yields two
// counter-clockwise triangles seen from +Z.
func GridIndices(numXY int) []uint32 {
	if numXY < 2 {
		return nil
	}
	n := uint32(numXY)
	indices := make([]uint32, 0, (numXY-1)*(numXY-1)*6)
	for xi := uint32(0); xi+1 < n; xi++ {
		for yi := uint32(0); yi+1 < n; yi++ {
			a := xi*n + yi
			b := (xi+1)*n + yi
			c := xi*n + yi + 1
			d := (xi+1)*n + yi + 1
			indices = append(indices, a, b, d, a, d, c)
		}
	}
	return indices
}

// WriteOBJ writes the mesh as a Wavefront OBJ with one texcoord per vertex.
func (m *Mesh) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# terrain mesh: %d vertices, %d triangles\n", len(m.Vertices), len(m.Indices)/3)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v.Position[0], v.Position[1], v.Position[2])
	}
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "vt %g %g %g\n", v.TexCoord[0], v.TexCoord[1], v.TexCoord[2])
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1
		fmt.Fprintf(bw, "f %d/%d %d/%d %d/%d\n", a, a, b, b, c, c)
	}

	return bw.Flush()
}

func emptyBounds() Bounds {
	return Bounds{
		Min: [3]float32{1e30, 1e30, 1e30},
		Max: [3]float32{-1e30, -1e30, -1e30},
	}
}

func updateBounds(b *Bounds, p math.Vec3) {
	lo := math.Vec3{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]}.Min(p)
	hi := math.Vec3{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]}.Max(p)
	b.Min = lo.Array()
	b.Max = hi.Array()
}
