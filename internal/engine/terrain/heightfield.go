package terrain

import (
	"errors"
	"fmt"
	stdmath "math"

	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// Height field errors.
var (
	ErrEmptyHeightMap = errors.New("height map has no pixels")
	ErrNoChannels     = errors.New("height map has no channels")
)

// maxSmoothRings caps the ring count used by SampleSmooth.
const maxSmoothRings = 8

// HeightField is a dense grid of elevation samples.
// Row 0 is the bottom row of the source image.
type HeightField struct {
	Width     int
	Height    int
	Samples   []float32 // Row-major, Width*Height
	MinHeight float32
	MaxHeight float32
}

// NewHeightField decodes grid into elevation samples. Each sample is the sum
// of the pixel's channels scaled by size*heightScale/channels.
func NewHeightField(grid PixelGrid, size, heightScale float32) (*HeightField, error) {
	width, height := grid.Size()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyHeightMap, width, height)
	}
	channels := grid.Channels()
	if channels <= 0 || channels > 4 {
		return nil, fmt.Errorf("%w: %d", ErrNoChannels, channels)
	}

	h := &HeightField{
		Width:   width,
		Height:  height,
		Samples: make([]float32, width*height),
	}

	scalar := size * heightScale / float32(channels)
	minH := float32(stdmath.MaxFloat32)
	maxH := float32(-stdmath.MaxFloat32)

	i := 0
	for yi := height - 1; yi >= 0; yi-- {
		for xi := 0; xi < width; xi++ {
			px := grid.Pixel(xi, yi)
			var v float32
			for c := 0; c < channels; c++ {
				v += px[c]
			}
			v *= scalar
			h.Samples[i] = v
			i++
			minH = min(minH, v)
			maxH = max(maxH, v)
		}
	}

	h.MinHeight = minH
	h.MaxHeight = maxH
	return h, nil
}

// At returns the sample at grid cell (x, y), clamped to the grid.
func (h *HeightField) At(x, y int) float32 {
	x = max(0, min(x, h.Width-1))
	y = max(0, min(y, h.Height-1))
	return h.Samples[y*h.Width+x]
}

// Bounds returns the observed height range.
func (h *HeightField) Bounds() (minHeight, maxHeight float32) {
	return h.MinHeight, h.MaxHeight
}

// Clone returns a deep copy of h.
func (h *HeightField) Clone() *HeightField {
	c := *h
	c.Samples = append([]float32(nil), h.Samples...)
	return &c
}

// SampleBilinear returns the interpolated height at normalized coordinates
// (u, v), where (0, 0) is the first sample and (1, 1) the last. Coordinates
// outside [0, 1] are clamped to the edge.
func (h *HeightField) SampleBilinear(u, v float32) float32 {
	fx := gridCoord(u, h.Width)
	fy := gridCoord(v, h.Height)

	x0 := int(fx)
	y0 := int(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	bottom := math.Lerp(h.At(x0, y0), h.At(x0+1, y0), tx)
	top := math.Lerp(h.At(x0, y0+1), h.At(x0+1, y0+1), tx)
	return math.Lerp(bottom, top, ty)
}

// SampleSmooth approximates the mean height over a disc of the given
// normalized radius centered at (u, v). The disc is sampled on concentric
// rings; ring i of k carries 8*i points so samples cover the area evenly.
// A radius of zero or less is a plain bilinear lookup.
func (h *HeightField) SampleSmooth(u, v, radius float32) float32 {
	if !(radius > 0) {
		return h.SampleBilinear(u, v)
	}

	cells := float64(radius) * float64(max(h.Width-1, h.Height-1, 1))
	rings := maxSmoothRings
	if cells < maxSmoothRings {
		rings = max(1, int(stdmath.Ceil(cells)))
	}

	sum := float64(h.SampleBilinear(u, v))
	count := 1
	for i := 1; i <= rings; i++ {
		r := float64(radius) * float64(i) / float64(rings)
		n := 8 * i
		for j := 0; j < n; j++ {
			angle := 2 * stdmath.Pi * float64(j) / float64(n)
			du := float32(r * stdmath.Cos(angle))
			dv := float32(r * stdmath.Sin(angle))
			sum += float64(h.SampleBilinear(u+du, v+dv))
			count++
		}
	}
	return float32(sum / float64(count))
}

// gridCoord maps a normalized coordinate onto [0, n-1]. The coordinate is
// clamped before scaling so infinities never meet a zero-width axis.
func gridCoord(t float32, n int) float32 {
	if t != t { // NaN
		return 0
	}
	return math.Clamp(t, 0, 1) * float32(n-1)
}
