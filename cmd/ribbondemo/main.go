// Command ribbondemo opens a window and renders two animated ribbons from a
// procedurally generated tile strip. It demonstrates driving the engine's
// render loop from a host frame loop (ebiten's Update) and the two
// animation styles: layer cycling and flow.
//
// Keys: F toggles flow direction (off/forward/backward), arrow up/down
// changes flow speed, S saves the current frame as PNG.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/ribbon"
	"github.com/gogpu/ribbon/tile"
)

func main() {
	var (
		size     = flag.Int("size", 640, "Window size in pixels.")
		tiles    = flag.Int("tiles", 8, "Number of tiles in the generated strip.")
		layers   = flag.Int("layers", 6, "Animation layers per tile.")
		tileDir  = flag.String("dir", "", "Load tiles from a directory instead of generating them.")
		fps      = flag.Int("layer-fps", 12, "Layer cycling rate.")
		planes   = flag.Bool("planes", false, "Use ping-pong layer cycling instead of wrap-around.")
		verbose  = flag.Bool("v", false, "Enable debug logging.")
		segments = flag.Int("segments", 48, "Resampled points per path.")
	)
	flag.Parse()

	if *verbose {
		ribbon.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	src, err := pickSource(*tileDir, *tiles, *layers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	mode := tile.CycleWaves
	if *planes {
		mode = tile.CyclePlanes
	}
	cache, err := tile.Load(context.Background(), src,
		tile.WithLayerFPS(*fps), tile.WithCycleMode(mode))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sched := &ribbon.ManualScheduler{}
	eng := ribbon.NewEngine(
		ribbon.WithTileCache(cache),
		ribbon.WithScheduler(sched),
		ribbon.WithFrameSize(*size, *size),
		ribbon.WithResample(*segments),
	)
	defer eng.Close()

	if _, err := eng.BuildRibbonSeries(demoPaths(), 0.12); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	eng.SetFlowState(ribbon.FlowForward)
	if err := eng.Start(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	g := &game{eng: eng, sched: sched, size: *size, start: time.Now()}
	ebiten.SetWindowTitle("ribbondemo")
	ebiten.SetWindowSize(*size, *size)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pickSource loads tiles from a directory or generates a procedural strip.
func pickSource(dir string, tiles, layers int) (tile.Source, error) {
	if dir != "" {
		return tile.NewDirSource(dir)
	}
	return generateStrip(tiles, layers)
}

// generateStrip builds a MemorySource of PNG tiles: each tile a hue band of
// the strip, each layer a brightness phase so cycling reads as a pulse.
func generateStrip(tiles, layers int) (tile.Source, error) {
	const side = 64
	encoded := make([][][]byte, tiles)
	for t := 0; t < tiles; t++ {
		encoded[t] = make([][]byte, layers)
		for l := 0; l < layers; l++ {
			img := image.NewRGBA(image.Rect(0, 0, side, side))
			phase := 2 * math.Pi * float64(l) / float64(layers)
			for y := 0; y < side; y++ {
				for x := 0; x < side; x++ {
					hue := (float64(t) + float64(x)/side) / float64(tiles)
					bright := 0.75 + 0.25*math.Sin(phase+2*math.Pi*float64(y)/side)
					img.Set(x, y, hueColor(hue, bright))
				}
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return nil, err
			}
			encoded[t][l] = buf.Bytes()
		}
	}
	return tile.NewMemorySource(encoded)
}

// hueColor converts a hue in [0,1) and brightness to an opaque RGBA color.
func hueColor(h, v float64) color.RGBA {
	h = math.Mod(h, 1) * 6
	f := h - math.Floor(h)
	p, q := 0.0, 1-f
	var r, g, b float64
	switch int(h) % 6 {
	case 0:
		r, g, b = 1, f, p
	case 1:
		r, g, b = q, 1, p
	case 2:
		r, g, b = p, 1, f
	case 3:
		r, g, b = p, q, 1
	case 4:
		r, g, b = f, p, 1
	default:
		r, g, b = 1, p, q
	}
	return color.RGBA{
		R: uint8(r * v * 255),
		G: uint8(g * v * 255),
		B: uint8(b * v * 255),
		A: 0xFF,
	}
}

// demoPaths returns two side-by-side strokes: a sine sweep and a loop.
func demoPaths() [][]ribbon.Point3 {
	var wave []ribbon.Point3
	for i := 0; i <= 40; i++ {
		x := float64(i) / 40 * 4
		wave = append(wave, ribbon.Pt3(x, 0.6*math.Sin(x*2), 0))
	}
	var loop []ribbon.Point3
	for i := 0; i <= 40; i++ {
		a := float64(i) / 40 * 2 * math.Pi
		loop = append(loop, ribbon.Pt3(2+0.8*math.Cos(a), -1.6+0.8*math.Sin(a), 0))
	}
	return [][]ribbon.Point3{wave, loop}
}

// game adapts the engine to ebiten's frame loop.
type game struct {
	eng   *ribbon.Engine
	sched *ribbon.ManualScheduler
	size  int
	start time.Time
	fb    *ebiten.Image
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		next := (g.eng.State().FlowDirection() + 1) % 3
		g.eng.SetFlowState(next)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		g.eng.State().SetFlowSpeed(g.eng.State().FlowSpeed() * 1.5)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		g.eng.State().SetFlowSpeed(g.eng.State().FlowSpeed() / 1.5)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.saveFrame()
	}
	g.sched.Step(time.Since(g.start))
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	frame := g.eng.Frame()
	if frame == nil {
		return
	}
	if g.fb == nil {
		g.fb = ebiten.NewImage(g.size, g.size)
	}
	g.fb.WritePixels(frame.Pix)
	screen.DrawImage(g.fb, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.size, g.size
}

// saveFrame writes the current frame next to the binary.
func (g *game) saveFrame() {
	data, err := g.eng.ExportCurrentFrame()
	if err != nil {
		return
	}
	name := fmt.Sprintf("ribbon_%d.png", time.Now().Unix())
	_ = os.WriteFile(name, data, 0o644)
}
