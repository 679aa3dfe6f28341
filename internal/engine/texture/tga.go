// Package texture decodes height-map images into channel rasters.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeGray         = 3  // Uncompressed grayscale
	TGATypeRLE          = 10 // RLE compressed true-color
	TGATypeRLEGray      = 11 // RLE compressed grayscale
)

const (
	tgaHeaderSize            = 18
	tgaDescriptorTopToBottom = 0x20
)

// ErrTruncatedTGA is returned when pixel data ends early.
var ErrTruncatedTGA = errors.New("TGA data truncated")

// DecodeTGA decodes a TGA image file.
// Grayscale images decode to *image.Gray, 24-bit to *image.RGBA and 32-bit to
// *image.NRGBA, so the channel count survives decoding.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: header", ErrTruncatedTGA)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	gray := imageType == TGATypeGray || imageType == TGATypeRLEGray
	rle := imageType == TGATypeRLE || imageType == TGATypeRLEGray
	switch {
	case imageType != TGATypeUncompressed && imageType != TGATypeGray &&
		imageType != TGATypeRLE && imageType != TGATypeRLEGray:
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	case gray && bpp != 8:
		return nil, fmt.Errorf("unsupported grayscale TGA bit depth %d", bpp)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("unsupported TGA bit depth %d (only 24/32 supported)", bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid TGA dimensions: %dx%d", width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: id field", ErrTruncatedTGA)
	}

	d := &tgaDecoder{
		src:           data[offset:],
		width:         width,
		height:        height,
		bytesPerPixel: bpp / 8,
		topToBottom:   descriptor&tgaDescriptorTopToBottom != 0,
	}
	switch {
	case gray:
		img := image.NewGray(image.Rect(0, 0, width, height))
		d.set = func(x, y int, px []byte) {
			img.SetGray(x, y, color.Gray{Y: px[0]})
		}
		d.img = img
	case bpp == 24:
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		d.set = func(x, y int, px []byte) {
			img.SetRGBA(x, y, color.RGBA{R: px[2], G: px[1], B: px[0], A: 255})
		}
		d.img = img
	default:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		d.set = func(x, y int, px []byte) {
			img.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: px[3]})
		}
		d.img = img
	}

	var err error
	if rle {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	src           []byte
	width, height int
	bytesPerPixel int
	topToBottom   bool
	img           image.Image
	set           func(x, y int, px []byte)
}

// put stores the pixel at stream index i, honoring the file's row order.
func (d *tgaDecoder) put(i int, px []byte) {
	x := i % d.width
	y := i / d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.set(x, y, px)
}

func (d *tgaDecoder) decodeRaw() error {
	count := d.width * d.height
	if len(d.src) < count*d.bytesPerPixel {
		return fmt.Errorf("%w: pixel data", ErrTruncatedTGA)
	}
	for i := 0; i < count; i++ {
		off := i * d.bytesPerPixel
		d.put(i, d.src[off:off+d.bytesPerPixel])
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	count := d.width * d.height
	pixelIdx := 0
	dataIdx := 0
	bpp := d.bytesPerPixel

	for pixelIdx < count {
		if dataIdx >= len(d.src) {
			return fmt.Errorf("%w: RLE packet %d of %d pixels", ErrTruncatedTGA, pixelIdx, count)
		}
		packet := d.src[dataIdx]
		dataIdx++
		n := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run packet: one pixel repeated n times.
			if dataIdx+bpp > len(d.src) {
				return fmt.Errorf("%w: RLE run", ErrTruncatedTGA)
			}
			px := d.src[dataIdx : dataIdx+bpp]
			dataIdx += bpp
			for i := 0; i < n && pixelIdx < count; i++ {
				d.put(pixelIdx, px)
				pixelIdx++
			}
			continue
		}

		for i := 0; i < n && pixelIdx < count; i++ {
			if dataIdx+bpp > len(d.src) {
				return fmt.Errorf("%w: RLE raw packet", ErrTruncatedTGA)
			}
			d.put(pixelIdx, d.src[dataIdx:dataIdx+bpp])
			dataIdx += bpp
			pixelIdx++
		}
	}

	return nil
}
