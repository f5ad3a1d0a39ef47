package tile

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	igpu "github.com/gogpu/ribbon/internal/gpu"
)

// CycleMode selects how layer cycling advances through a tile's layers.
type CycleMode uint8

const (
	// CycleWaves wraps around continuously: 0, 1, ..., n-1, 0, 1, ...
	CycleWaves CycleMode = iota

	// CyclePlanes ping-pongs: 0, 1, ..., n-1, n-2, ..., 0, 1, ...
	// The direction flips exactly at the two boundaries.
	CyclePlanes
)

// String returns a human-readable mode name.
func (m CycleMode) String() string {
	switch m {
	case CycleWaves:
		return "waves"
	case CyclePlanes:
		return "planes"
	default:
		return "unknown"
	}
}

// DefaultLayerFPS is the layer cycling rate used when none is configured.
const DefaultLayerFPS = 12

// Option configures a Cache at load time.
type Option func(*Cache)

// WithLayerFPS sets the layer cycling rate in layers per second.
// Values below 1 fall back to DefaultLayerFPS.
func WithLayerFPS(fps int) Option {
	return func(c *Cache) {
		if fps >= 1 {
			c.fps = fps
		}
	}
}

// WithCycleMode sets the layer cycling mode.
func WithCycleMode(m CycleMode) Option {
	return func(c *Cache) { c.mode = m }
}

// Cache owns the decoded tiles of one texture strip plus everything derived
// from them: the layer cycling state, the flow state, the material index,
// and any adopted GPU textures.
//
// The cache is the single mutator of cycling and flow state; ribbons and
// segments hold only material handles and never write cache state. Loads
// and GPU adoption may run on a different goroutine than the render loop,
// so the material index and lifecycle flags are mutex-guarded.
type Cache struct {
	mu sync.Mutex

	tiles      [][]*image.RGBA // [tile][layer], immutable after Load
	layerCount int

	// Layer cycling.
	fps       int
	mode      CycleMode
	layer     int
	direction int // +1 or -1, only CyclePlanes flips it
	acc       time.Duration
	lastTick  time.Duration
	ticked    bool

	// Flow animation.
	flowEnabled    bool
	flowSpeed      float64 // signed, whole tiles per second
	flowOffset     float64 // fraction of a tile; normalized by WrapFlowOffset
	baseTileOffset int

	// Cache-owned material index. Handles index into materials; byKey
	// dedupes identical materials across segments.
	materials []Material
	byKey     map[Material]Handle

	// GPU resources, present only after AdoptDevice.
	gpuTiles [][]gpucontext.Texture
	gpuRes   *igpu.Resources

	closed bool
}

// Load constructs a cache by decoding every layer of every tile from src.
// All decode work happens here, never inside a frame tick. Any unreachable
// or corrupt tile fails the whole load; a cache is never partially usable.
func Load(ctx context.Context, src Source, opts ...Option) (*Cache, error) {
	if src == nil || src.TileCount() <= 0 || src.LayerCount() <= 0 {
		return nil, ErrEmptySource
	}

	c := &Cache{
		layerCount: src.LayerCount(),
		fps:        DefaultLayerFPS,
		mode:       CycleWaves,
		direction:  1,
		byKey:      make(map[Material]Handle),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tiles = make([][]*image.RGBA, src.TileCount())
	for i := range c.tiles {
		raw, err := src.TileLayers(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
		if len(raw) != c.layerCount {
			return nil, fmt.Errorf("%w: tile %d has %d layers, want %d", ErrLayerMismatch, i, len(raw), c.layerCount)
		}
		layers := make([]*image.RGBA, len(raw))
		for li, data := range raw {
			img, err := decodeLayer(data)
			if err != nil {
				return nil, fmt.Errorf("tile %d layer %d: %w", i, li, err)
			}
			layers[li] = img
		}
		c.tiles[i] = layers
	}

	logger().Info("tile set loaded",
		"tiles", len(c.tiles), "layers", c.layerCount, "mode", c.mode.String())
	return c, nil
}

// TileCount returns the number of tiles in the strip.
func (c *Cache) TileCount() int { return len(c.tiles) }

// LayerCount returns the number of animation layers per tile.
func (c *Cache) LayerCount() int { return c.layerCount }

// WrapIndex maps any global segment index into [0, TileCount), so ribbons
// with more segments than tiles repeat the strip cyclically. Valid for
// negative indices, which reverse flow produces.
func (c *Cache) WrapIndex(i int) int {
	n := len(c.tiles)
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// Layer returns the RGBA pixels of one tile layer. Indices are wrapped and
// clamped, never out of range.
func (c *Cache) Layer(tileIndex, layer int) *image.RGBA {
	if len(c.tiles) == 0 {
		return nil
	}
	t := c.tiles[c.WrapIndex(tileIndex)]
	if layer < 0 {
		layer = 0
	}
	if layer >= len(t) {
		layer = len(t) - 1
	}
	return t[layer]
}

// --- Layer cycling ---

// SetLayer resets the cycling position. Out-of-range values are wrapped.
// CyclePlanes resumes in the forward direction.
func (c *Cache) SetLayer(n int) {
	c.layer = ((n % c.layerCount) + c.layerCount) % c.layerCount
	c.direction = 1
	c.acc = 0
}

// CurrentLayer returns the layer single-tile materials sample this frame.
func (c *Cache) CurrentLayer() int { return c.layer }

// Tick advances layer cycling. now is the loop's monotonic frame timestamp;
// the first call only establishes the time base. One layer step happens per
// elapsed 1/fps second, so a stalled frame may step several layers at once.
// A timestamp earlier than the previous one re-bases the clock instead of
// stepping: timelines restart from zero when a cache outlives its loop, as
// in offline clip export or a loop rebind.
func (c *Cache) Tick(now time.Duration) {
	if !c.ticked || now < c.lastTick {
		c.ticked = true
		c.lastTick = now
		return
	}
	c.acc += now - c.lastTick
	c.lastTick = now

	interval := time.Second / time.Duration(c.fps)
	for c.acc >= interval {
		c.acc -= interval
		c.stepLayer()
	}
}

// stepLayer advances one layer in the configured mode.
func (c *Cache) stepLayer() {
	if c.layerCount <= 1 {
		return
	}
	switch c.mode {
	case CycleWaves:
		c.layer = (c.layer + 1) % c.layerCount
	case CyclePlanes:
		next := c.layer + c.direction
		if next >= c.layerCount {
			// Clamp and flip at the top boundary.
			c.direction = -1
			next = c.layerCount - 2
		} else if next < 0 {
			c.direction = 1
			next = 1
		}
		c.layer = next
	}
}

// --- Flow state ---

// SetFlowEnabled toggles flow animation. Disabling does not reset the
// accumulated offset, so re-enabling resumes where the conveyor stopped.
func (c *Cache) SetFlowEnabled(enabled bool) { c.flowEnabled = enabled }

// FlowEnabled reports whether flow animation is switched on.
func (c *Cache) FlowEnabled() bool { return c.flowEnabled }

// SetFlowSpeed sets the flow rate in tiles per second. Negative values run
// the conveyor backwards.
func (c *Cache) SetFlowSpeed(speed float64) { c.flowSpeed = speed }

// FlowSpeed returns the signed flow rate.
func (c *Cache) FlowSpeed() float64 { return c.flowSpeed }

// FlowActive reports whether flow animation is visibly running: enabled and
// at nonzero speed. Material selection branches on this.
func (c *Cache) FlowActive() bool { return c.flowEnabled && c.flowSpeed != 0 }

// AdvanceFlow accumulates elapsed time into the flow offset. The offset may
// leave [0, 1) here; the series' swap detection normalizes it back through
// WrapFlowOffset on the same frame.
func (c *Cache) AdvanceFlow(dt time.Duration) {
	if !c.FlowActive() {
		return
	}
	c.flowOffset += dt.Seconds() * c.flowSpeed
}

// FlowOffset returns the progress toward the next tile swap. Between swaps
// it is the blend factor of flow materials.
func (c *Cache) FlowOffset() float64 { return c.flowOffset }

// SetFlowOffset overwrites the flow offset. Intended for deterministic
// stepping in tests and clip export.
func (c *Cache) SetFlowOffset(offset float64) { c.flowOffset = offset }

// BaseTileOffset returns the whole-tile shift flow has accumulated.
// Flow materials bake it into their tile indices at creation.
func (c *Cache) BaseTileOffset() int { return c.baseTileOffset }

// WrapFlowOffset shifts the base tile offset by wholeTiles, removes the
// same amount from the flow offset, and invalidates the material index so
// flow materials are recreated at the shifted base. The caller computes
// wholeTiles as floor(offset), which leaves the remainder in [0, 1) for
// either flow direction.
func (c *Cache) WrapFlowOffset(wholeTiles int) {
	if wholeTiles == 0 {
		return
	}
	c.baseTileOffset += wholeTiles
	c.flowOffset -= float64(wholeTiles)
	c.InvalidateMaterials()
}

// --- Materials ---

// Material returns a handle to the single-tile material for a global
// segment index. The sampled layer is not baked in: it is CurrentLayer at
// draw time.
func (c *Cache) Material(globalIndex int) Handle {
	return c.intern(Material{Kind: KindSingle, Tile: c.WrapIndex(globalIndex)})
}

// FlowMaterial returns a handle to the dual-tile material for a global
// segment index: the tile at the flow-shifted index plus its successor,
// blended at draw time by the live flow offset.
func (c *Cache) FlowMaterial(globalIndex int) Handle {
	base := c.WrapIndex(globalIndex + c.baseTileOffset)
	return c.intern(Material{Kind: KindFlow, Tile: base, Next: c.WrapIndex(base + 1)})
}

// intern returns the handle of an existing identical material or indexes a
// new one.
func (c *Cache) intern(m Material) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.byKey[m]; ok {
		return h
	}
	h := Handle(len(c.materials))
	c.materials = append(c.materials, m)
	c.byKey[m] = h
	return h
}

// MaterialAt resolves a handle. It returns false for NoMaterial, stale
// handles from before the last invalidation, and closed caches.
func (c *Cache) MaterialAt(h Handle) (Material, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || h < 0 || int(h) >= len(c.materials) {
		return Material{}, false
	}
	return c.materials[int(h)], true
}

// MaterialCount returns the number of live materials in the index.
func (c *Cache) MaterialCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.materials)
}

// InvalidateMaterials drops every material in one step. Outstanding handles
// become stale; segment owners recreate theirs on the same frame.
func (c *Cache) InvalidateMaterials() {
	c.mu.Lock()
	c.materials = c.materials[:0]
	c.byKey = make(map[Material]Handle)
	c.mu.Unlock()
	logger().Debug("material index invalidated")
}

// --- GPU adoption ---

// AdoptDevice uploads every tile layer to the GPU through the provider's
// texture creator. The CPU pixels remain the source of truth for the
// software compositor; GPU textures are a derived copy owned by the cache.
func (c *Cache) AdoptDevice(provider gpucontext.DeviceProvider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if provider == nil {
		return ErrNoDevice
	}
	creator, ok := any(provider).(gpucontext.TextureCreator)
	if !ok {
		return fmt.Errorf("%w: provider has no texture creator", ErrNoDevice)
	}
	tex, err := igpu.UploadTileSet(creator, c.tiles)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Providers that share their HAL device also get the flow blend shader
	// compiled and resident, so the host can build the dual-tile pipeline.
	var res *igpu.Resources
	if device, ok := igpu.DeviceOf(provider); ok {
		code, err := igpu.FlowShaderSPIRV()
		if err != nil {
			igpu.DestroyTextures(tex)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		module, err := igpu.NewShaderModule(device, "tile_flow_blend", code)
		if err != nil {
			igpu.DestroyTextures(tex)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		res = &igpu.Resources{Device: device, ShaderModule: module}
	}

	// Replacing a previous adoption destroys the old resources first.
	igpu.DestroyTextures(c.gpuTiles)
	if c.gpuRes != nil {
		c.gpuRes.Destroy()
	}
	c.gpuTiles = tex
	c.gpuRes = res
	logger().Info("GPU device adopted", "tiles", len(tex), "flowShader", res != nil)
	return nil
}

// FlowShader returns the resident flow blend shader module, or false when
// the adopted provider did not share a HAL device.
func (c *Cache) FlowShader() (hal.ShaderModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gpuRes == nil || c.gpuRes.ShaderModule == nil {
		return nil, false
	}
	return c.gpuRes.ShaderModule, true
}

// GPULayer returns the adopted GPU texture for one tile layer, or false if
// no device has been adopted.
func (c *Cache) GPULayer(tileIndex, layer int) (gpucontext.Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gpuTiles == nil {
		return nil, false
	}
	t := c.gpuTiles[c.WrapIndex(tileIndex)]
	if layer < 0 || layer >= len(t) {
		return nil, false
	}
	return t[layer], true
}

// Close releases decoded layers, the material index, and any adopted GPU
// textures. Close is idempotent.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	igpu.DestroyTextures(c.gpuTiles)
	c.gpuTiles = nil
	if c.gpuRes != nil {
		c.gpuRes.Destroy()
		c.gpuRes = nil
	}
	c.tiles = nil
	c.materials = nil
	c.byKey = nil
}

// Closed reports whether Close has been called.
func (c *Cache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
