package tile

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestNewMemorySourceErrors(t *testing.T) {
	tests := []struct {
		name  string
		tiles [][][]byte
		want  error
	}{
		{"nil", nil, ErrEmptySource},
		{"empty", [][][]byte{}, ErrEmptySource},
		{"tile with no layers", [][][]byte{{}}, ErrEmptySource},
		{"layer count mismatch", [][][]byte{
			{[]byte("a"), []byte("b")},
			{[]byte("a")},
		}, ErrLayerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMemorySource(tt.tiles); !errors.Is(err, tt.want) {
				t.Errorf("NewMemorySource() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemorySourceTileLayers(t *testing.T) {
	src := newTestSource(t, 3, 2)
	if src.TileCount() != 3 || src.LayerCount() != 2 {
		t.Fatalf("counts = (%d, %d), want (3, 2)", src.TileCount(), src.LayerCount())
	}
	layers, err := src.TileLayers(context.Background(), 1)
	if err != nil {
		t.Fatalf("TileLayers(1) error = %v", err)
	}
	if len(layers) != 2 {
		t.Errorf("TileLayers(1) returned %d layers, want 2", len(layers))
	}
	for _, idx := range []int{-1, 3} {
		if _, err := src.TileLayers(context.Background(), idx); !errors.Is(err, ErrUnavailable) {
			t.Errorf("TileLayers(%d) error = %v, want ErrUnavailable", idx, err)
		}
	}
}

// writeTileDir lays out a tile archive directory for DirSource tests.
func writeTileDir(t *testing.T, root string, tiles, layers int) {
	t.Helper()
	for ti := 0; ti < tiles; ti++ {
		dir := filepath.Join(root, "tile_"+string(rune('0'+ti)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for li := 0; li < layers; li++ {
			data := encodeSolidPNG(t, color.RGBA{R: uint8(ti), G: uint8(li), A: 0xFF})
			name := filepath.Join(dir, "layer_"+string(rune('0'+li))+".png")
			if err := os.WriteFile(name, data, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestNewDirSource(t *testing.T) {
	root := t.TempDir()
	writeTileDir(t, root, 3, 2)
	// Non-tile entries are ignored.
	if err := os.MkdirAll(filepath.Join(root, "not_a_tile"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(root)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	if src.TileCount() != 3 {
		t.Errorf("TileCount() = %d, want 3", src.TileCount())
	}
	if src.LayerCount() != 2 {
		t.Errorf("LayerCount() = %d, want 2", src.LayerCount())
	}

	// The source feeds Load end to end.
	c, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load from DirSource: %v", err)
	}
	defer c.Close()
	if got := c.Layer(2, 1).RGBAAt(0, 0); got != (color.RGBA{R: 2, G: 1, A: 0xFF}) {
		t.Errorf("Layer(2, 1) pixel = %v", got)
	}
}

func TestNewDirSourceErrors(t *testing.T) {
	if _, err := NewDirSource(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing root error = %v, want ErrUnavailable", err)
	}
	if _, err := NewDirSource(t.TempDir()); !errors.Is(err, ErrEmptySource) {
		t.Errorf("empty root error = %v, want ErrEmptySource", err)
	}

	root := t.TempDir()
	writeTileDir(t, root, 1, 2)
	// Add a lopsided tile_1 with a single layer.
	dir := filepath.Join(root, "tile_1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data := encodeSolidPNG(t, color.RGBA{A: 0xFF})
	if err := os.WriteFile(filepath.Join(dir, "layer_0.png"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirSource(root); !errors.Is(err, ErrLayerMismatch) {
		t.Errorf("lopsided archive error = %v, want ErrLayerMismatch", err)
	}
}
