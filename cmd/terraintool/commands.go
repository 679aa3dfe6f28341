package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/assets"
	"github.com/Faultbox/midgard-terrain/internal/config"
	"github.com/Faultbox/midgard-terrain/internal/engine/terrain"
	"github.com/Faultbox/midgard-terrain/internal/logger"
)

var errUsage = errors.New("invalid arguments")

type app struct {
	cfg   *config.Config
	files *assets.Manager
	out   io.Writer
}

func newApp(cfg *config.Config, out io.Writer) *app {
	files := assets.NewManager(cfg.Terrain.ModelPath, cfg.Terrain.CacheDir)
	files.FetchTimeout = cfg.Fetch.Timeout
	return &app{cfg: cfg, files: files, out: out}
}

func (a *app) close() {
	a.files.Close()
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "info":
		return a.cmdInfo(args)
	case "height", "h":
		return a.cmdHeight(args)
	case "mesh":
		return a.cmdMesh(args)
	case "fetch":
		return a.cmdFetch(args)
	case "config":
		return a.cmdConfig(args)
	case "help", "-h", "--help":
		printUsage(a.out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `terraintool - terrain height-field utility

Usage:
  terraintool [global options] <command> [options]

Commands:
  info <terrain>                       Show descriptor and height range
  height <terrain> <x> <y> [radius]    Sample height, smoothed height and slope
  mesh [-x X -y Y -size S -n N -o F] <terrain>
                                       Tessellate a square into a Wavefront OBJ
  fetch <src> <dir>                    Download a terrain bundle
  config [-save | -o F]                Print the effective config, or save it

Global options:
  -config FILE       Config file (default ./terrain.yaml or user config dir)
  -model-path DIRS   Extra terrain search directories
  -cache-dir DIR     Download directory for remote terrains
  -resolution N      Default mesh vertices per side
  -log-file FILE     Also log to FILE
  -debug             Enable debug logging

Examples:
  terraintool info ./maps/hills
  terraintool height hills 1200 800 50
  terraintool mesh -n 65 -o hills.obj hills
  terraintool fetch https://example.com/hills.zip ./maps/hills`)
}

// load sets up the named terrain through the asset manager.
func (a *app) load(name string) (*terrain.Terrain, error) {
	t := terrain.New(a.files)
	if err := t.Setup(name); err != nil {
		return nil, err
	}
	return t, nil
}

func (a *app) cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: usage: terraintool info <terrain>", errUsage)
	}

	t, err := a.load(args[0])
	if err != nil {
		return err
	}

	field := t.HeightField()
	fmt.Fprintf(a.out, "Terrain:      %s\n", t.Name())
	fmt.Fprintf(a.out, "Size:         %.3f ft\n", t.Size())
	fmt.Fprintf(a.out, "Height scale: %g\n", t.HeightScale())
	fmt.Fprintf(a.out, "Height map:   %s (%dx%d)\n", t.HeightMap(), field.Width, field.Height)
	fmt.Fprintf(a.out, "Heights:      %.3f .. %.3f\n", t.MinHeight(), t.MaxHeight())
	fmt.Fprintf(a.out, "Normal map:   %s\n", orNone(t.NormalMap()))
	fmt.Fprintf(a.out, "Splat map:    %s\n", orNone(t.SplatMap()))

	layers := t.SplatLayers()
	fmt.Fprintf(a.out, "Splat layers: %d\n", len(layers))
	for i, l := range layers {
		fmt.Fprintf(a.out, "  [%d] %s tiling=%g color=(%g %g %g)\n",
			i, l.Path, l.Tiling, l.Color[0], l.Color[1], l.Color[2])
	}
	return nil
}

func (a *app) cmdHeight(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: usage: terraintool height <terrain> <x> <y> [radius]", errUsage)
	}

	coords, err := parseFloats(args[1:])
	if err != nil {
		return err
	}
	radius := a.cfg.Mesh.SmoothRadius
	if len(coords) > 2 {
		radius = coords[2]
	}

	t, err := a.load(args[0])
	if err != nil {
		return err
	}

	x, y := coords[0], coords[1]
	fmt.Fprintf(a.out, "height %g\n", t.Height(x, y))
	fmt.Fprintf(a.out, "smooth %g (radius %g)\n", t.SmoothHeight(x, y, radius), radius)
	fmt.Fprintf(a.out, "slope  %g\n", t.Slope(x, y))
	return nil
}

func (a *app) cmdMesh(args []string) error {
	fs := flag.NewFlagSet("mesh", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	startX := fs.Float64("x", 0, "Start X in feet")
	startY := fs.Float64("y", 0, "Start Y in feet")
	size := fs.Float64("size", 0, "Edge length in feet (0 = whole terrain)")
	num := fs.Int("n", a.cfg.Mesh.Resolution, "Vertices per side")
	output := fs.String("o", "", "Output OBJ file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: usage: terraintool mesh [options] <terrain>", errUsage)
	}

	t, err := a.load(fs.Arg(0))
	if err != nil {
		return err
	}

	edge := float32(*size)
	if edge <= 0 {
		edge = t.Size()
	}

	mesh, err := t.BuildMesh(float32(*startX), float32(*startY), edge, *num)
	if err != nil {
		return err
	}

	w := a.out
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", *output, err)
		}
		defer f.Close()
		w = f
	}

	if err := mesh.WriteOBJ(w); err != nil {
		return fmt.Errorf("writing mesh: %w", err)
	}

	logger.Info("mesh written",
		zap.String("terrain", t.Name()),
		zap.Int("vertices", len(mesh.Vertices)),
		zap.Int("triangles", len(mesh.Indices)/3),
		zap.Int("vertex_bytes", len(mesh.Vertices)*mesh.Format().Stride()),
		zap.String("output", *output),
	)
	return nil
}

func (a *app) cmdFetch(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: terraintool fetch <src> <dir>", errUsage)
	}

	ctx := context.Background()
	if a.cfg.Fetch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Fetch.Timeout)
		defer cancel()
	}

	dst, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	if err := assets.Fetch(ctx, args[0], dst); err != nil {
		return err
	}

	logger.Sugar.Infof("fetched %s into %s", args[0], dst)
	fmt.Fprintf(a.out, "Fetched: %s -> %s\n", args[0], dst)
	return nil
}

func (a *app) cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	save := fs.Bool("save", false, "Save to the user config directory")
	output := fs.String("o", "", "Save to this file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch {
	case *output != "":
		if err := a.cfg.SaveTo(*output); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(a.out, "Saved: %s\n", *output)
	case *save:
		if err := a.cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(a.out, "Saved: %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	default:
		return a.cfg.Write(a.out)
	}
	return nil
}

func parseFloats(args []string) ([]float32, error) {
	out := make([]float32, 0, len(args))
	for _, s := range args {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", errUsage, s)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
