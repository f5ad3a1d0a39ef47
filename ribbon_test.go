package ribbon

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/gogpu/ribbon/tile"
)

// testSource builds an in-memory source of solid-color PNG tiles.
func testSource(t *testing.T, tiles, layers int) tile.Source {
	t.Helper()
	data := make([][][]byte, tiles)
	for ti := 0; ti < tiles; ti++ {
		data[ti] = make([][]byte, layers)
		for li := 0; li < layers; li++ {
			img := image.NewRGBA(image.Rect(0, 0, 4, 4))
			c := color.RGBA{R: uint8(ti * 20), G: uint8(li * 20), B: 0x80, A: 0xFF}
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					img.Set(x, y, c)
				}
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				t.Fatal(err)
			}
			data[ti][li] = buf.Bytes()
		}
	}
	src, err := tile.NewMemorySource(data)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

// testCache loads a cache of solid-color PNG tiles for tests.
func testCache(t *testing.T, tiles, layers int, opts ...tile.Option) *tile.Cache {
	t.Helper()
	c, err := tile.Load(context.Background(), testSource(t, tiles, layers), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

// linePath returns n collinear points spaced one unit apart.
func linePath(n int) []Point3 {
	pts := make([]Point3, n)
	for i := range pts {
		pts[i] = Pt3(float64(i), 0, 0)
	}
	return pts
}

func TestRibbonBuildErrors(t *testing.T) {
	r := NewRibbon(nil)
	if err := r.Build(linePath(3), 0.1, 0); err != ErrNoTileCache {
		t.Errorf("Build without cache = %v, want ErrNoTileCache", err)
	}

	r = NewRibbon(testCache(t, 4, 1))
	tests := []struct {
		name string
		pts  []Point3
	}{
		{"nil", nil},
		{"one point", linePath(1)},
		{"duplicates collapse", []Point3{Pt3(1, 1, 1), Pt3(1, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Build(tt.pts, 0.1, 0); err != ErrTooFewPoints {
				t.Errorf("Build(%s) = %v, want ErrTooFewPoints", tt.name, err)
			}
		})
	}
}

func TestRibbonBuildSegments(t *testing.T) {
	cache := testCache(t, 4, 1)
	r := NewRibbon(cache)
	if err := r.Build(linePath(6), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := r.SegmentCount(); got != 5 {
		t.Fatalf("SegmentCount() = %d, want 5", got)
	}
	for i, seg := range r.Segments() {
		if seg.TileIndex() != i {
			t.Errorf("segment %d tile index = %d", i, seg.TileIndex())
		}
		if len(seg.Positions()) != 12 || len(seg.UVs()) != 8 || len(seg.Indices()) != 6 {
			t.Errorf("segment %d buffer sizes = (%d, %d, %d)",
				i, len(seg.Positions()), len(seg.UVs()), len(seg.Indices()))
		}
		m, ok := cache.MaterialAt(seg.Material())
		if !ok {
			t.Fatalf("segment %d has no resolvable material", i)
		}
		if m.Kind != tile.KindSingle {
			t.Errorf("segment %d material kind = %v, want single", i, m.Kind)
		}
		if want := cache.WrapIndex(i); m.Tile != want {
			t.Errorf("segment %d material tile = %d, want %d", i, m.Tile, want)
		}
	}
}

func TestRibbonSegmentOffsetBakedIn(t *testing.T) {
	cache := testCache(t, 4, 1)
	r := NewRibbon(cache)
	r.SetSegmentOffset(7)
	if err := r.Build(linePath(4), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i, seg := range r.Segments() {
		if want := i + 7; seg.TileIndex() != want {
			t.Errorf("segment %d tile index = %d, want %d", i, seg.TileIndex(), want)
		}
	}
}

func TestRibbonBuildWithFlowActive(t *testing.T) {
	cache := testCache(t, 4, 1)
	cache.SetFlowEnabled(true)
	cache.SetFlowSpeed(1)
	r := NewRibbon(cache)
	if err := r.Build(linePath(3), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i, seg := range r.Segments() {
		m, ok := cache.MaterialAt(seg.Material())
		if !ok {
			t.Fatalf("segment %d has no resolvable material", i)
		}
		if m.Kind != tile.KindFlow {
			t.Errorf("segment %d material kind = %v, want flow", i, m.Kind)
		}
		if want := cache.WrapIndex(m.Tile + 1); m.Next != want {
			t.Errorf("segment %d material next = %d, want %d", i, m.Next, want)
		}
	}
}

func TestRibbonRebuild(t *testing.T) {
	r := NewRibbon(testCache(t, 4, 1))
	if err := r.Rebuild(0); err != ErrNotBuilt {
		t.Errorf("Rebuild before Build = %v, want ErrNotBuilt", err)
	}
	if err := r.Build(linePath(5), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	old := r.Segments()[0]
	if err := r.Rebuild(0); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := r.SegmentCount(); got != 4 {
		t.Errorf("SegmentCount() after rebuild = %d, want 4", got)
	}
	// Old segments were disposed and replaced.
	if old == r.Segments()[0] {
		t.Error("rebuild reused old segment")
	}
	if old.Positions() != nil {
		t.Error("old segment not disposed")
	}
}

func TestRibbonUpdateKeepsMaterials(t *testing.T) {
	cache := testCache(t, 4, 1)
	r := NewRibbon(cache)
	if err := r.Build(linePath(4), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := make([]tile.Handle, r.SegmentCount())
	framed := make([][]float32, r.SegmentCount())
	for i, seg := range r.Segments() {
		before[i] = seg.Material()
		framed[i] = append([]float32(nil), seg.Positions()...)
	}

	r.Update(1.3)

	moved := false
	for i, seg := range r.Segments() {
		if seg.Material() != before[i] {
			t.Errorf("segment %d material changed across Update", i)
		}
		for v := range framed[i] {
			if seg.Positions()[v] != framed[i][v] {
				moved = true
			}
		}
	}
	if !moved {
		t.Error("Update did not move any vertex")
	}
}

func TestRibbonDisposeIdempotent(t *testing.T) {
	r := NewRibbon(testCache(t, 2, 1))
	r.Dispose() // never built
	if err := r.Build(linePath(3), 0.2, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	segs := r.Segments()
	r.Dispose()
	r.Dispose()
	if r.SegmentCount() != 0 {
		t.Errorf("SegmentCount() after dispose = %d", r.SegmentCount())
	}
	for i, seg := range segs {
		if seg.Material() != tile.NoMaterial {
			t.Errorf("segment %d still holds a material after dispose", i)
		}
	}
	if err := r.Rebuild(0); err != ErrNotBuilt {
		t.Errorf("Rebuild after dispose = %v, want ErrNotBuilt", err)
	}
}

func TestSegmentWidth(t *testing.T) {
	cache := testCache(t, 2, 1)
	r := NewRibbon(cache)
	if err := r.Build(linePath(2), 0.5, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pos := r.Segments()[0].Positions()
	// Left/right vertices of the start edge are width apart.
	dx := float64(pos[3] - pos[0])
	dy := float64(pos[4] - pos[1])
	dz := float64(pos[5] - pos[2])
	width := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if !almostEqual(width, 0.5, 1e-6) {
		t.Errorf("edge width = %g, want 0.5", width)
	}
}
