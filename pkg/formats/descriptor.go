// Package formats provides parsers for terrain descriptor files.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FeetPerKm converts the descriptor's kilometer area edge into world feet.
const FeetPerKm = 3280.839895013

// DescriptorFileName is the file looked up when a terrain directory is named.
const DescriptorFileName = "terrain.txt"

// Descriptor format errors.
var (
	ErrUnknownKeyword  = errors.New("invalid token")
	ErrMalformedNumber = errors.New("malformed number")
	ErrMissingField    = errors.New("unexpected end of descriptor")
	ErrInvalidArea     = errors.New("area must be positive")
)

// DescriptorError reports where a descriptor failed to parse.
type DescriptorError struct {
	Path  string
	Line  int
	Token string
	Err   error
}

func (e *DescriptorError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v at %q", e.Path, e.Line, e.Err, e.Token)
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// SplatLayer is one texture entry composited onto the terrain surface.
type SplatLayer struct {
	Path   string
	Tiling float32
	Color  [4]float32 // RGBA, alpha always 1
}

// Descriptor holds the parsed contents of a terrain.txt file.
type Descriptor struct {
	Size        float32 // Edge length in feet
	HeightScale float32
	HeightMap   string
	NormalMap   string
	SplatMap    string
	SplatLayers []SplatLayer
}

// NewDescriptor returns a descriptor holding the unloaded defaults.
func NewDescriptor() *Descriptor {
	return &Descriptor{
		Size:        1,
		HeightScale: 1,
	}
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.SplatLayers = append([]SplatLayer(nil), d.SplatLayers...)
	return &c
}

// String returns a one-line summary of the descriptor.
func (d *Descriptor) String() string {
	return fmt.Sprintf("size=%g height_scale=%g heightmap=%q normalmap=%q splatmap=%q layers=%d",
		d.Size, d.HeightScale, d.HeightMap, d.NormalMap, d.SplatMap, len(d.SplatLayers))
}

// ParseDescriptor parses a terrain descriptor from r.
// Path names the descriptor; relative filenames inside it resolve against its directory.
func ParseDescriptor(r io.Reader, path string) (*Descriptor, error) {
	// Descriptors saved by Windows editors may start with a UTF-8 or UTF-16
	// byte order mark. Anything else passes through untouched.
	r = transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))

	p := &descriptorParser{
		tok:  newTokenizer(r),
		path: path,
		dir:  filepath.Dir(path),
		out:  NewDescriptor(),
	}

	for {
		keyword, ok, err := p.tok.next()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if !ok {
			break
		}
		if err := p.record(keyword); err != nil {
			return nil, err
		}
	}

	d := p.out

	// The first two textures are the normal map and the splat map.
	if len(d.SplatLayers) > 0 {
		d.NormalMap = d.SplatLayers[0].Path
		d.SplatLayers = d.SplatLayers[1:]
	}
	if len(d.SplatLayers) > 0 {
		d.SplatMap = d.SplatLayers[0].Path
		d.SplatLayers = d.SplatLayers[1:]
	}
	if len(d.SplatLayers) == 0 {
		d.SplatLayers = nil
	}

	return d, nil
}

// ParseDescriptorFile parses a terrain descriptor from disk.
func ParseDescriptorFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening descriptor: %w", err)
	}
	defer f.Close()
	return ParseDescriptor(f, path)
}

type descriptorParser struct {
	tok  *tokenizer
	path string
	dir  string
	out  *Descriptor
}

func (p *descriptorParser) record(keyword string) error {
	d := p.out

	switch keyword {
	case "area":
		area, err := p.float()
		if err != nil {
			return err
		}
		if !(area > 0) {
			return p.fail(ErrInvalidArea, strconv.FormatFloat(float64(area), 'g', -1, 32))
		}
		d.Size = float32(math.Sqrt(float64(area)) * FeetPerKm)

	case "height_scale":
		v, err := p.float()
		if err != nil {
			return err
		}
		d.HeightScale = v

	case "normalmap_b_scale", "shininess":
		_, err := p.float()
		return err

	case "heightmap":
		name, err := p.filename()
		if err != nil {
			return err
		}
		d.HeightMap = name

	case "texture":
		name, err := p.filename()
		if err != nil {
			return err
		}
		tiling, err := p.float()
		if err != nil {
			return err
		}
		d.SplatLayers = append(d.SplatLayers, SplatLayer{
			Path:   name,
			Tiling: tiling,
			Color:  [4]float32{1, 1, 1, 1},
		})

	case "color":
		rgb, err := p.floats3()
		if err != nil {
			return err
		}
		// Tints the most recent texture only.
		if n := len(d.SplatLayers); n > 0 {
			d.SplatLayers[n-1].Color = [4]float32{rgb[0], rgb[1], rgb[2], 1}
		}

	case "ambient", "diffuse", "specular", "emissive":
		_, err := p.floats3()
		return err

	default:
		return p.fail(ErrUnknownKeyword, keyword)
	}

	return nil
}

func (p *descriptorParser) float() (float32, error) {
	tok, ok, err := p.tok.next()
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", p.path, err)
	}
	if !ok {
		return 0, p.fail(ErrMissingField, "")
	}
	if !isDecimal(tok) {
		return 0, p.fail(ErrMalformedNumber, tok)
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil || math.IsInf(v, 0) {
		return 0, p.fail(ErrMalformedNumber, tok)
	}
	return float32(v), nil
}

// isDecimal reports whether tok is a plain decimal float: an optional sign,
// digits with an optional point, and an optional exponent. strconv also takes
// hex floats, inf and nan, which descriptors never contain.
func isDecimal(tok string) bool {
	i := 0
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(tok) && isDigit(tok[i]); i++ {
		digits++
	}
	if i < len(tok) && tok[i] == '.' {
		i++
		for ; i < len(tok) && isDigit(tok[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(tok) && (tok[i] == 'e' || tok[i] == 'E') {
		i++
		if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
			i++
		}
		start := i
		for ; i < len(tok) && isDigit(tok[i]); i++ {
		}
		if i == start {
			return false
		}
	}
	return i == len(tok)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (p *descriptorParser) floats3() ([3]float32, error) {
	var out [3]float32
	for i := range out {
		v, err := p.float()
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// filename reads one token, strips a single pair of enclosing double quotes
// and anchors relative names at the descriptor's directory. Embedded spaces
// are not supported.
func (p *descriptorParser) filename() (string, error) {
	tok, ok, err := p.tok.next()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p.path, err)
	}
	if !ok {
		return "", p.fail(ErrMissingField, "")
	}
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		tok = tok[1 : len(tok)-1]
	}
	name := filepath.FromSlash(tok)
	if !filepath.IsAbs(name) {
		name = filepath.Join(p.dir, name)
	}
	return name, nil
}

func (p *descriptorParser) fail(err error, token string) error {
	return &DescriptorError{
		Path:  p.path,
		Line:  p.tok.line,
		Token: token,
		Err:   err,
	}
}

// tokenizer splits a stream into whitespace-separated tokens, tracking lines.
type tokenizer struct {
	sc     *bufio.Scanner
	line   int
	fields []string
}

func newTokenizer(r io.Reader) *tokenizer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &tokenizer{sc: sc}
}

// next returns the next token; ok is false at a clean end of input.
func (t *tokenizer) next() (tok string, ok bool, err error) {
	for len(t.fields) == 0 {
		if !t.sc.Scan() {
			return "", false, t.sc.Err()
		}
		t.line++
		t.fields = strings.Fields(t.sc.Text())
	}
	tok = t.fields[0]
	t.fields = t.fields[1:]
	return tok, true, nil
}
