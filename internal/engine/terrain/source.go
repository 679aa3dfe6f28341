package terrain

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Faultbox/midgard-terrain/internal/engine/texture"
	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

// ErrNoHeightMap is returned when a descriptor names no height map.
var ErrNoHeightMap = errors.New("no height map configured")

// ImageSource decodes a height-map image file opened through a FileSource.
type ImageSource struct {
	Path  string
	Files FileSource
}

// NewImageSource returns the default height source for path.
func NewImageSource(path string, files FileSource) *ImageSource {
	return &ImageSource{Path: path, Files: files}
}

// Decode opens and decodes the image.
func (s *ImageSource) Decode() (PixelGrid, error) {
	if s.Path == "" {
		return nil, ErrNoHeightMap
	}

	files := s.Files
	if files == nil {
		files = LocalFiles{}
	}

	r, err := files.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening height map: %w", err)
	}
	defer r.Close()

	raster, err := texture.Decode(r, s.Path)
	if err != nil {
		return nil, err
	}
	return raster, nil
}

// LocalFiles is a FileSource over the local filesystem with no search path.
type LocalFiles struct{}

// Resolve checks that name exists. A directory resolves to its terrain.txt.
func (LocalFiles) Resolve(name string) (string, error) {
	info, err := os.Stat(name)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return filepath.Join(name, formats.DescriptorFileName), nil
	}
	return name, nil
}

// Open opens path for reading.
func (LocalFiles) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
