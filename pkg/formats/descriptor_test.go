package formats

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func parseString(t *testing.T, text string) (*Descriptor, error) {
	t.Helper()
	return ParseDescriptor(strings.NewReader(text), filepath.Join("maps", "hills", DescriptorFileName))
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-3*math.Max(1, math.Abs(float64(b)))
}

func TestParseDescriptor_Defaults(t *testing.T) {
	d, err := parseString(t, "")
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if d.Size != 1 || d.HeightScale != 1 {
		t.Errorf("expected size=1 height_scale=1, got %v %v", d.Size, d.HeightScale)
	}
	if d.HeightMap != "" || d.NormalMap != "" || d.SplatMap != "" {
		t.Errorf("expected empty paths, got %s", d)
	}
	if len(d.SplatLayers) != 0 {
		t.Errorf("expected no layers, got %d", len(d.SplatLayers))
	}
}

func TestParseDescriptor_Area(t *testing.T) {
	for _, area := range []float64{1, 4, 2.5, 100} {
		d, err := parseString(t, "area "+strconv.FormatFloat(area, 'g', -1, 64))
		if err != nil {
			t.Fatalf("area %v: %v", area, err)
		}
		want := float32(math.Sqrt(area) * FeetPerKm)
		if !approx(d.Size, want) {
			t.Errorf("area %v: expected size %v, got %v", area, want, d.Size)
		}
	}
}

func TestParseDescriptor_Scalars(t *testing.T) {
	text := `
area 4
height_scale 0.25
normalmap_b_scale 3
ambient 0.1 0.2 0.3
diffuse 1 1 1
specular 0 0 0
emissive 0 0 0
shininess 12
heightmap "height.png"
`
	d, err := parseString(t, text)
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if d.HeightScale != 0.25 {
		t.Errorf("expected height_scale 0.25, got %v", d.HeightScale)
	}
	want := filepath.Join("maps", "hills", "height.png")
	if d.HeightMap != want {
		t.Errorf("expected heightmap %s, got %s", want, d.HeightMap)
	}
}

func TestParseDescriptor_Filenames(t *testing.T) {
	abs := filepath.Join(string(filepath.Separator), "srv", "terrain", "h.png")

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"bare", "h.png", filepath.Join("maps", "hills", "h.png")},
		{"quoted", `"h.png"`, filepath.Join("maps", "hills", "h.png")},
		{"subdir", "tex/h.png", filepath.Join("maps", "hills", "tex", "h.png")},
		{"absolute", abs, abs},
		{"single quote kept", `"h.png`, filepath.Join("maps", "hills", `"h.png`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseString(t, "heightmap "+tt.token)
			if err != nil {
				t.Fatalf("ParseDescriptor failed: %v", err)
			}
			if d.HeightMap != tt.want {
				t.Errorf("expected %s, got %s", tt.want, d.HeightMap)
			}
		})
	}
}

func TestParseDescriptor_SplatReclassification(t *testing.T) {
	text := `
texture "normal.png" 1
texture "splat.png" 1
texture "grass.png" 16
color 0.5 0.6 0.7
texture "rock.png" 8
texture "sand.png" 4
color 0.9 0.8 0.1
`
	d, err := parseString(t, text)
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}

	dir := filepath.Join("maps", "hills")
	if d.NormalMap != filepath.Join(dir, "normal.png") {
		t.Errorf("unexpected normal map %s", d.NormalMap)
	}
	if d.SplatMap != filepath.Join(dir, "splat.png") {
		t.Errorf("unexpected splat map %s", d.SplatMap)
	}

	want := []SplatLayer{
		{Path: filepath.Join(dir, "grass.png"), Tiling: 16, Color: [4]float32{0.5, 0.6, 0.7, 1}},
		{Path: filepath.Join(dir, "rock.png"), Tiling: 8, Color: [4]float32{1, 1, 1, 1}},
		{Path: filepath.Join(dir, "sand.png"), Tiling: 4, Color: [4]float32{0.9, 0.8, 0.1, 1}},
	}
	if len(d.SplatLayers) != len(want) {
		t.Fatalf("expected %d layers, got %d", len(want), len(d.SplatLayers))
	}
	for i, layer := range want {
		if d.SplatLayers[i] != layer {
			t.Errorf("layer %d: expected %+v, got %+v", i, layer, d.SplatLayers[i])
		}
	}
}

func TestParseDescriptor_FewTextures(t *testing.T) {
	d, err := parseString(t, "texture n.png 1")
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if d.NormalMap == "" {
		t.Error("expected normal map to be set")
	}
	if d.SplatMap != "" {
		t.Errorf("expected empty splat map, got %s", d.SplatMap)
	}
	if len(d.SplatLayers) != 0 {
		t.Errorf("expected no layers, got %d", len(d.SplatLayers))
	}

	d, err = parseString(t, "texture n.png 1 texture s.png 2")
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if d.NormalMap == "" || d.SplatMap == "" {
		t.Errorf("expected both maps, got %s", d)
	}
	if len(d.SplatLayers) != 0 {
		t.Errorf("expected no layers, got %d", len(d.SplatLayers))
	}
}

func TestParseDescriptor_ColorBeforeTexture(t *testing.T) {
	d, err := parseString(t, "color 0 0 0\ntexture a.png 1\ntexture b.png 1\ntexture c.png 2")
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if len(d.SplatLayers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(d.SplatLayers))
	}
	if d.SplatLayers[0].Color != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected default color, got %v", d.SplatLayers[0].Color)
	}
}

func TestParseDescriptor_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  error
		line  int
		token string
	}{
		{"unknown keyword", "area 1\nfoo 1.0", ErrUnknownKeyword, 2, "foo"},
		{"keyword case", "AREA 1", ErrUnknownKeyword, 1, "AREA"},
		{"malformed number", "height_scale abc", ErrMalformedNumber, 1, "abc"},
		{"partial number", "area 1.5x", ErrMalformedNumber, 1, "1.5x"},
		{"malformed color", "color 1 two 3", ErrMalformedNumber, 1, "two"},
		{"truncated record", "texture a.png", ErrMissingField, 1, ""},
		{"truncated filename", "heightmap", ErrMissingField, 1, ""},
		{"negative area", "area -4", ErrInvalidArea, 1, "-4"},
		{"nan", "height_scale nan", ErrMalformedNumber, 1, "nan"},
		{"inf", "height_scale inf", ErrMalformedNumber, 1, "inf"},
		{"infinity", "height_scale Infinity", ErrMalformedNumber, 1, "Infinity"},
		{"hex float", "height_scale 0x1p2", ErrMalformedNumber, 1, "0x1p2"},
		{"underscore", "height_scale 1_000", ErrMalformedNumber, 1, "1_000"},
		{"overflow", "height_scale 1e39", ErrMalformedNumber, 1, "1e39"},
		{"bare exponent", "shininess 2e", ErrMalformedNumber, 1, "2e"},
		{"lone point", "shininess .", ErrMalformedNumber, 1, "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseString(t, tt.text)
			if err == nil {
				t.Fatalf("expected error, got descriptor %s", d)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var derr *DescriptorError
			if !errors.As(err, &derr) {
				t.Fatalf("expected *DescriptorError, got %T", err)
			}
			if derr.Line != tt.line {
				t.Errorf("expected line %d, got %d", tt.line, derr.Line)
			}
			if derr.Token != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, derr.Token)
			}
			if !strings.Contains(err.Error(), DescriptorFileName) {
				t.Errorf("error should name the descriptor: %v", err)
			}
		})
	}
}

func TestParseDescriptor_DecimalForms(t *testing.T) {
	tests := []struct {
		tok  string
		want float32
	}{
		{"2", 2},
		{"+2", 2},
		{"-0.5", -0.5},
		{"1.", 1},
		{".25", 0.25},
		{"1e2", 100},
		{"2.5E-1", 0.25},
	}

	for _, tt := range tests {
		d, err := parseString(t, "height_scale "+tt.tok)
		if err != nil {
			t.Errorf("height_scale %s: %v", tt.tok, err)
			continue
		}
		if !approx(d.HeightScale, tt.want) {
			t.Errorf("height_scale %s = %v, want %v", tt.tok, d.HeightScale, tt.want)
		}
	}
}

func TestParseDescriptor_ByteOrderMark(t *testing.T) {
	utf16 := []byte{0xFF, 0xFE}
	for _, c := range []byte("height_scale 2\n") {
		utf16 = append(utf16, c, 0)
	}

	tests := []struct {
		name string
		data []byte
		area bool
	}{
		{"utf8", []byte("\xEF\xBB\xBFarea 4\nheight_scale 2\n"), true},
		{"utf16le", utf16, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor(bytes.NewReader(tt.data), DescriptorFileName)
			if err != nil {
				t.Fatalf("ParseDescriptor failed: %v", err)
			}
			if d.HeightScale != 2 {
				t.Errorf("expected height_scale 2, got %v", d.HeightScale)
			}
			if tt.area && !approx(d.Size, 2*FeetPerKm) {
				t.Errorf("expected size %v, got %v", 2*FeetPerKm, d.Size)
			}
		})
	}
}

func TestParseDescriptorFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorFileName)
	if err := os.WriteFile(path, []byte("area 1\nheightmap h.png\n"), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	d, err := ParseDescriptorFile(path)
	if err != nil {
		t.Fatalf("ParseDescriptorFile failed: %v", err)
	}
	if d.HeightMap != filepath.Join(dir, "h.png") {
		t.Errorf("unexpected heightmap %s", d.HeightMap)
	}

	if _, err := ParseDescriptorFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDescriptorClone(t *testing.T) {
	d, err := parseString(t, "texture a 1 texture b 1 texture c 2 texture d 3")
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	c := d.Clone()
	c.SplatLayers[0].Tiling = 99
	if d.SplatLayers[0].Tiling == 99 {
		t.Error("clone shares splat layers with original")
	}
}
