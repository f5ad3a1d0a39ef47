package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Tile layers are pre-encoded compressed images. PNG and WebP are the
	// two formats the authoring pipeline emits.
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Source supplies the compressed tile assets a Cache is loaded from.
//
// TileCount and LayerCount are fixed for the lifetime of a source; every
// tile must carry exactly LayerCount layers. TileLayers returns the
// compressed bytes of each layer of one tile, in layer order.
type Source interface {
	// TileCount returns the number of tiles in the set.
	TileCount() int

	// LayerCount returns the number of animation layers per tile.
	LayerCount() int

	// TileLayers returns the encoded image bytes for each layer of the tile
	// at index, which is in [0, TileCount).
	TileLayers(ctx context.Context, index int) ([][]byte, error)
}

// MemorySource serves tiles from encoded byte slices held in memory.
// It backs bundled asset sets and tests.
type MemorySource struct {
	tiles      [][][]byte // [tile][layer] -> encoded bytes
	layerCount int
}

// NewMemorySource creates a source from encoded layer bytes, indexed as
// [tile][layer]. All tiles must have the same layer count.
func NewMemorySource(tiles [][][]byte) (*MemorySource, error) {
	if len(tiles) == 0 || len(tiles[0]) == 0 {
		return nil, ErrEmptySource
	}
	layers := len(tiles[0])
	for i, t := range tiles {
		if len(t) != layers {
			return nil, fmt.Errorf("%w: tile %d has %d layers, want %d", ErrLayerMismatch, i, len(t), layers)
		}
	}
	return &MemorySource{tiles: tiles, layerCount: layers}, nil
}

// TileCount returns the number of tiles.
func (s *MemorySource) TileCount() int { return len(s.tiles) }

// LayerCount returns the number of layers per tile.
func (s *MemorySource) LayerCount() int { return s.layerCount }

// TileLayers returns the encoded layers of one tile.
func (s *MemorySource) TileLayers(_ context.Context, index int) ([][]byte, error) {
	if index < 0 || index >= len(s.tiles) {
		return nil, fmt.Errorf("%w: tile index %d out of range", ErrUnavailable, index)
	}
	return s.tiles[index], nil
}

// DirSource serves tiles from a local archive directory laid out as
//
//	root/tile_000/layer_000.png
//	root/tile_000/layer_001.webp
//	root/tile_001/...
//
// Tile and layer counts are discovered at construction and fixed afterwards.
type DirSource struct {
	root       string
	layerFiles [][]string // [tile][layer] -> path
}

// NewDirSource scans root and builds the tile/layer index.
// Returns ErrEmptySource if no tiles are found, ErrLayerMismatch if tiles
// disagree on layer count.
func NewDirSource(root string) (*DirSource, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var layerFiles [][]string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		var n int
		if _, err := fmt.Sscanf(name, "tile_%d", &n); err != nil {
			continue
		}
		dir := filepath.Join(root, name)
		layers, err := scanLayers(dir)
		if err != nil {
			return nil, err
		}
		layerFiles = append(layerFiles, layers)
	}
	if len(layerFiles) == 0 {
		return nil, ErrEmptySource
	}
	want := len(layerFiles[0])
	for i, l := range layerFiles {
		if len(l) != want {
			return nil, fmt.Errorf("%w: tile %d has %d layers, want %d", ErrLayerMismatch, i, len(l), want)
		}
	}
	return &DirSource{root: root, layerFiles: layerFiles}, nil
}

// scanLayers lists the layer files of one tile directory in name order.
func scanLayers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".png", ".webp":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no layer images", ErrEmptySource, dir)
	}
	return out, nil
}

// TileCount returns the number of tiles.
func (s *DirSource) TileCount() int { return len(s.layerFiles) }

// LayerCount returns the number of layers per tile.
func (s *DirSource) LayerCount() int {
	if len(s.layerFiles) == 0 {
		return 0
	}
	return len(s.layerFiles[0])
}

// TileLayers reads the encoded layers of one tile from disk.
func (s *DirSource) TileLayers(_ context.Context, index int) ([][]byte, error) {
	if index < 0 || index >= len(s.layerFiles) {
		return nil, fmt.Errorf("%w: tile index %d out of range", ErrUnavailable, index)
	}
	out := make([][]byte, len(s.layerFiles[index]))
	for i, path := range s.layerFiles[index] {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out[i] = data
	}
	return out, nil
}

// decodeLayer decodes one compressed layer image into RGBA.
func decodeLayer(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return rgba, nil
}
