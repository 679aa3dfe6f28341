package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"io"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration
)

// Raster is a decoded image exposed as per-pixel channel values.
type Raster struct {
	img      image.Image
	channels int
}

// NewRaster wraps an already decoded image.
func NewRaster(img image.Image) *Raster {
	return &Raster{img: img, channels: countChannels(img)}
}

// Decode decodes an image stream. Name selects the TGA decoder by extension;
// every other format is sniffed by image.Decode.
func Decode(r io.Reader, name string) (*Raster, error) {
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return NewRaster(img), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	raster := NewRaster(img)
	if isGrayAlphaPNG(data) {
		// image/png widens gray+alpha to NRGBA; keep the file's two channels.
		raster.channels = 2
	}
	return raster, nil
}

// isGrayAlphaPNG reports whether data is a PNG whose IHDR declares the
// gray+alpha color type.
func isGrayAlphaPNG(data []byte) bool {
	const (
		signature     = "\x89PNG\r\n\x1a\n"
		colorTypeAt   = 25
		grayAlphaType = 4
	)
	return len(data) > colorTypeAt &&
		string(data[:8]) == signature &&
		string(data[12:16]) == "IHDR" &&
		data[colorTypeAt] == grayAlphaType
}

// Size returns the raster dimensions in pixels.
func (r *Raster) Size() (width, height int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Channels returns 1 for grayscale, 2 for grayscale with alpha, 3 for opaque
// color and 4 for color with alpha.
func (r *Raster) Channels() int {
	return r.channels
}

// Pixel returns the channel values of the pixel at (x, y), row 0 at the top,
// normalized to [0, 1]. Channels beyond Channels() are zero.
func (r *Raster) Pixel(x, y int) [4]float32 {
	b := r.img.Bounds()
	c := r.img.At(b.Min.X+x, b.Min.Y+y)

	var out [4]float32
	if r.channels == 1 {
		g := color.Gray16Model.Convert(c).(color.Gray16)
		out[0] = float32(g.Y) / 0xffff
		return out
	}

	n := toNRGBA64(c)
	if r.channels == 2 {
		out[0] = float32(n.R) / 0xffff
		out[1] = float32(n.A) / 0xffff
		return out
	}
	out[0] = float32(n.R) / 0xffff
	out[1] = float32(n.G) / 0xffff
	out[2] = float32(n.B) / 0xffff
	if r.channels == 4 {
		out[3] = float32(n.A) / 0xffff
	}
	return out
}

// toNRGBA64 converts without a premultiplied round trip, which would drop
// the color of fully transparent pixels.
func toNRGBA64(c color.Color) color.NRGBA64 {
	switch c := c.(type) {
	case color.NRGBA64:
		return c
	case color.NRGBA:
		return color.NRGBA64{
			R: uint16(c.R) * 0x101,
			G: uint16(c.G) * 0x101,
			B: uint16(c.B) * 0x101,
			A: uint16(c.A) * 0x101,
		}
	}
	return color.NRGBA64Model.Convert(c).(color.NRGBA64)
}

// countChannels infers how many channels the source image carried.
func countChannels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr, *image.CMYK:
		return 3
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return 4
			}
		}
	}
	return 3
}
