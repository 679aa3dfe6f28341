// Package terrain samples height-map images into a height field and answers
// height queries and mesh tessellation requests over it.
package terrain

import (
	"io"

	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// FileSource resolves terrain references and opens them for reading.
type FileSource interface {
	// Resolve turns a possibly relative reference into a readable path.
	Resolve(name string) (string, error)
	Open(path string) (io.ReadCloser, error)
}

// PixelGrid is a decoded elevation image. Pixel rows are stored top-down;
// each pixel carries Channels() values normalized to [0, 1].
type PixelGrid interface {
	Size() (width, height int)
	Channels() int
	Pixel(x, y int) [4]float32
}

// HeightSource produces the elevation image for a terrain.
type HeightSource interface {
	Decode() (PixelGrid, error)
}

// HeightSourceFunc adapts a function to HeightSource.
type HeightSourceFunc func() (PixelGrid, error)

// Decode calls f.
func (f HeightSourceFunc) Decode() (PixelGrid, error) {
	return f()
}

// VertexSink receives the vertices generated by Terrain.FillVertices.
type VertexSink interface {
	// Format reports the layout the sink stores; it must equal
	// StandardFormat for writes to be accepted.
	Format() VertexFormat
	AddVertex(position, texcoord math.Vec3)
}

// NumericType is the storage type of a vertex column component.
type NumericType int

// Numeric types.
const (
	NumericFloat32 NumericType = iota
)

// Contents describes how a vertex column is interpreted.
type Contents int

// Column contents.
const (
	ContentsPoint Contents = iota
	ContentsTexCoord
)

// Column is one attribute of a vertex layout.
type Column struct {
	Name       string
	Components int
	Type       NumericType
	Contents   Contents
}

// Size returns the column size in bytes.
func (c Column) Size() int {
	return c.Components * 4
}

// VertexFormat is the fixed terrain vertex layout: position then texcoord.
type VertexFormat struct {
	Position Column
	TexCoord Column
}

// Stride returns the size of one vertex in bytes.
func (f VertexFormat) Stride() int {
	return f.Position.Size() + f.TexCoord.Size()
}

// StandardFormat is the layout every terrain emits: 3 float position and
// 3 float texcoord.
var StandardFormat = VertexFormat{
	Position: Column{Name: "vertex", Components: 3, Type: NumericFloat32, Contents: ContentsPoint},
	TexCoord: Column{Name: "texcoord", Components: 3, Type: NumericFloat32, Contents: ContentsTexCoord},
}

// Vertex represents a terrain mesh vertex.
type Vertex struct {
	Position [3]float32
	TexCoord [3]float32
}

// Bounds holds the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}
