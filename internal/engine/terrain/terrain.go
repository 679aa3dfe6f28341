package terrain

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/pkg/formats"
	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// Terrain errors.
var (
	ErrNotValid          = errors.New("terrain is not loaded")
	ErrFormatMismatch    = errors.New("vertex sink format does not match terrain format")
	ErrInvalidResolution = errors.New("vertex grid needs at least 2 points per side")
)

// Terrain is a height-map terrain described by a terrain.txt descriptor.
//
// Queries are read-only and may run concurrently; Setup, LoadData and Clear
// must not overlap with them.
type Terrain struct {
	files     FileSource
	newSource func(path string) HeightSource
	log       *zap.Logger

	name   string
	desc   *formats.Descriptor
	field  *HeightField
	format VertexFormat
	valid  bool
}

// New creates an unloaded terrain that reads files through files.
// A nil FileSource reads from the local filesystem.
func New(files FileSource) *Terrain {
	if files == nil {
		files = LocalFiles{}
	}
	t := &Terrain{
		files: files,
		log:   logger.Named("terrain"),
	}
	t.Clear()
	return t
}

// SetSourceFactory replaces the default image-file height source.
// Passing nil restores it.
func (t *Terrain) SetSourceFactory(fn func(path string) HeightSource) {
	t.newSource = fn
}

// Clear resets the terrain to its initial, unloaded state.
func (t *Terrain) Clear() {
	t.name = ""
	t.desc = formats.NewDescriptor()
	t.field = nil
	t.format = StandardFormat
	t.valid = false
}

// Setup resolves name (a descriptor file or a directory holding terrain.txt),
// parses it and loads the height map it names.
func (t *Terrain) Setup(name string) error {
	t.Clear()

	path, err := t.files.Resolve(name)
	if err != nil {
		t.log.Warn("couldn't find terrain", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("resolving terrain %s: %w", name, err)
	}

	r, err := t.files.Open(path)
	if err != nil {
		t.log.Warn("couldn't open terrain", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("opening terrain %s: %w", path, err)
	}
	defer r.Close()

	return t.SetupReader(r, path)
}

// SetupReader sets up the terrain from an already opened descriptor.
// Path names the descriptor and anchors relative filenames inside it.
func (t *Terrain) SetupReader(r io.Reader, path string) error {
	t.Clear()

	desc, err := formats.ParseDescriptor(r, path)
	if err != nil {
		t.log.Error("invalid terrain descriptor", zap.String("path", path), zap.Error(err))
		return err
	}
	t.name = path
	t.desc = desc

	if err := t.LoadData(); err != nil {
		t.Clear()
		return err
	}
	return nil
}

// LoadData decodes the configured height map into the height field. On
// failure the terrain is left invalid with its configuration intact.
func (t *Terrain) LoadData() error {
	t.valid = false
	t.field = nil

	grid, err := t.source().Decode()
	if err != nil {
		t.log.Warn("couldn't read height map", zap.String("path", t.desc.HeightMap), zap.Error(err))
		return fmt.Errorf("loading height map: %w", err)
	}

	field, err := NewHeightField(grid, t.desc.Size, t.desc.HeightScale)
	if err != nil {
		t.log.Warn("invalid height map", zap.String("path", t.desc.HeightMap), zap.Error(err))
		return fmt.Errorf("loading height map: %w", err)
	}

	t.field = field
	t.valid = true
	t.log.Debug("terrain loaded",
		zap.String("descriptor", t.name),
		zap.Int("width", field.Width),
		zap.Int("height", field.Height),
		zap.Float32("size", t.desc.Size),
		zap.Float32("min_height", field.MinHeight),
		zap.Float32("max_height", field.MaxHeight),
	)
	return nil
}

func (t *Terrain) source() HeightSource {
	if t.newSource != nil {
		return t.newSource(t.desc.HeightMap)
	}
	return NewImageSource(t.desc.HeightMap, t.files)
}

// IsValid reports whether the terrain loaded successfully.
func (t *Terrain) IsValid() bool {
	return t.valid
}

// Height returns the terrain height at world point (x, y). The point may lie
// outside the terrain; the height field clamps to its edge.
func (t *Terrain) Height(x, y float32) float32 {
	if t.field == nil {
		return 0
	}
	return t.field.SampleBilinear(x/t.desc.Size, y/t.desc.Size)
}

// SmoothHeight returns the approximate average height over a circle of the
// given radius centered at (x, y).
func (t *Terrain) SmoothHeight(x, y, radius float32) float32 {
	if t.field == nil {
		return 0
	}
	size := t.desc.Size
	return t.field.SampleSmooth(x/size, y/size, radius/size)
}

// Slope returns the directionless slope at (x, y), 0 flat to 1 vertical.
// Slope is not derived from the height field: it is always 0.
func (t *Terrain) Slope(x, y float32) float32 {
	return 0
}

// FillVertices writes a numXY by numXY grid of vertices covering the square
// from (startX, startY) to (startX+sizeXY, startY+sizeXY), both corners
// included. Vertices are emitted x-major: all y for the first x, then the
// next x.
func (t *Terrain) FillVertices(sink VertexSink, startX, startY, sizeXY float32, numXY int) error {
	if !t.valid {
		return ErrNotValid
	}
	if sink.Format() != t.format {
		return ErrFormatMismatch
	}
	if numXY < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidResolution, numXY)
	}

	size := t.desc.Size
	vertexScale := 1 / float32(numXY-1)
	for xi := 0; xi < numXY; xi++ {
		x := startX + float32(xi)*vertexScale*sizeXY
		for yi := 0; yi < numXY; yi++ {
			y := startY + float32(yi)*vertexScale*sizeXY
			z := t.Height(x, y)

			sink.AddVertex(math.Vec3{X: x, Y: y, Z: z}, math.Vec3{X: x / size, Y: -y / size, Z: 1})
		}
	}
	return nil
}

// BuildMesh tessellates a square of the terrain into an indexed triangle mesh.
func (t *Terrain) BuildMesh(startX, startY, sizeXY float32, numXY int) (*Mesh, error) {
	if numXY < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidResolution, numXY)
	}
	mesh := NewMesh(numXY * numXY)
	if err := t.FillVertices(mesh, startX, startY, sizeXY, numXY); err != nil {
		return nil, err
	}
	mesh.Indices = GridIndices(numXY)
	return mesh, nil
}

// VertexFormat returns the layout FillVertices writes.
func (t *Terrain) VertexFormat() VertexFormat {
	return t.format
}

// Name returns the path of the loaded descriptor.
func (t *Terrain) Name() string {
	return t.name
}

// Size returns the terrain edge length in feet.
func (t *Terrain) Size() float32 {
	return t.desc.Size
}

// HeightScale returns the descriptor's height multiplier.
func (t *Terrain) HeightScale() float32 {
	return t.desc.HeightScale
}

// HeightMap returns the height map path.
func (t *Terrain) HeightMap() string {
	return t.desc.HeightMap
}

// NormalMap returns the normal map path, the descriptor's first texture.
func (t *Terrain) NormalMap() string {
	return t.desc.NormalMap
}

// SplatMap returns the splat map path, the descriptor's second texture.
func (t *Terrain) SplatMap() string {
	return t.desc.SplatMap
}

// SplatLayers returns a copy of the splat texture layers in descriptor order.
func (t *Terrain) SplatLayers() []formats.SplatLayer {
	return append([]formats.SplatLayer(nil), t.desc.SplatLayers...)
}

// HeightField returns the loaded height field, or nil.
func (t *Terrain) HeightField() *HeightField {
	return t.field
}

// MinHeight returns the lowest sample of the loaded height field.
func (t *Terrain) MinHeight() float32 {
	if t.field == nil {
		return 0
	}
	return t.field.MinHeight
}

// MaxHeight returns the highest sample of the loaded height field.
func (t *Terrain) MaxHeight() float32 {
	if t.field == nil {
		return 0
	}
	return t.field.MaxHeight
}

// Clone returns an independent copy of the terrain.
func (t *Terrain) Clone() *Terrain {
	c := *t
	c.desc = t.desc.Clone()
	if t.field != nil {
		c.field = t.field.Clone()
	}
	return &c
}

// String returns a short description of the terrain.
func (t *Terrain) String() string {
	if !t.valid {
		return "terrain (not loaded)"
	}
	return fmt.Sprintf("terrain %s: %s grid=%dx%d heights=[%g, %g]",
		t.name, t.desc, t.field.Width, t.field.Height, t.field.MinHeight, t.field.MaxHeight)
}
