package ribbon

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/ribbon/tile"
)

// Option configures an Engine.
type Option func(*engineConfig)

// engineConfig holds optional Engine configuration.
type engineConfig struct {
	cache       *tile.Cache
	sched       FrameScheduler
	width       int
	height      int
	resample    int
	normSize    float64
	newRecorder func() ClipRecorder
}

// defaultConfig returns the default engine configuration.
func defaultConfig() engineConfig {
	return engineConfig{
		sched:       TickerScheduler{FPS: 60},
		width:       512,
		height:      512,
		normSize:    2,
		newRecorder: func() ClipRecorder { return &PNGSequenceRecorder{} },
	}
}

// WithTileCache sets the initial tile cache. Without one, builds fail with
// ErrNoTileCache until LoadTextures succeeds.
func WithTileCache(c *tile.Cache) Option {
	return func(cfg *engineConfig) { cfg.cache = c }
}

// WithScheduler sets the frame scheduler. Defaults to a 60 fps ticker; pass
// a ManualScheduler to drive frames from a host loop or from tests.
func WithScheduler(s FrameScheduler) Option {
	return func(cfg *engineConfig) {
		if s != nil {
			cfg.sched = s
		}
	}
}

// WithFrameSize sets the software compositor's output size in pixels.
func WithFrameSize(width, height int) Option {
	return func(cfg *engineConfig) {
		if width > 0 && height > 0 {
			cfg.width = width
			cfg.height = height
		}
	}
}

// WithResample smooths every input path to exactly n points before
// building. Zero disables resampling and builds from the raw points.
func WithResample(n int) Option {
	return func(cfg *engineConfig) {
		if n >= 2 {
			cfg.resample = n
		}
	}
}

// WithClipRecorder sets the recorder factory used by ExportClip.
func WithClipRecorder(factory func() ClipRecorder) Option {
	return func(cfg *engineConfig) {
		if factory != nil {
			cfg.newRecorder = factory
		}
	}
}

// Engine wires the tile cache, ribbon series, viewer state, render loop,
// and software compositor into the surface consumed by hosts: build,
// animate, switch textures, export.
type Engine struct {
	mu sync.Mutex

	cfg    engineConfig
	cache  *tile.Cache
	series *RibbonSeries
	state  *ViewerState
	comp   *Compositor
	loop   *RenderLoop
}

// NewEngine creates an engine. The render loop starts stopped.
func NewEngine(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		cfg:   cfg,
		cache: cfg.cache,
		comp:  NewCompositor(cfg.width, cfg.height),
	}
	e.series = NewSeries(e.cache)
	e.state = NewViewerState(e.cache)
	e.state.BindCompositor(e.comp)
	e.loop = NewRenderLoop(e.cache, e.series, cfg.sched, e.comp)
	return e
}

// State returns the engine's viewer state for UI-layer sharing.
func (e *Engine) State() *ViewerState { return e.state }

// Series returns the engine's ribbon series.
func (e *Engine) Series() *RibbonSeries { return e.series }

// Cache returns the active tile cache, which may be nil before the first
// successful load.
func (e *Engine) Cache() *tile.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache
}

// prepare sanitizes, optionally resamples, and jointly normalizes the input
// paths.
func (e *Engine) prepare(paths [][]Point3) [][]Point3 {
	out := make([][]Point3, len(paths))
	for i, p := range paths {
		clean := Sanitize(p)
		if e.cfg.resample >= 2 && len(clean) >= 2 {
			smoothed, err := Resample(clean, e.cfg.resample)
			if err == nil {
				clean = smoothed
			}
		}
		out[i] = clean
	}
	return NormalizeTogether(out, e.cfg.normSize)
}

// BuildRibbonSeries builds the series from multiple paths: one ribbon per
// valid path, with globally contiguous tile indices. Returns the series as
// the caller's handle.
func (e *Engine) BuildRibbonSeries(paths [][]Point3, width float64) (*RibbonSeries, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		return nil, ErrNoTileCache
	}
	if err := e.series.BuildFromMultiplePaths(e.prepare(paths), width, 0); err != nil {
		return nil, err
	}
	return e.series, nil
}

// BuildRibbon builds the series from a single path and returns its ribbon.
func (e *Engine) BuildRibbon(points []Point3, width float64) (*Ribbon, error) {
	series, err := e.BuildRibbonSeries([][]Point3{points}, width)
	if err != nil {
		return nil, err
	}
	if len(series.Ribbons()) == 0 {
		return nil, ErrTooFewPoints
	}
	return series.Ribbons()[0], nil
}

// SetFlowState switches flow animation off, forward, or backward.
func (e *Engine) SetFlowState(d FlowDirection) {
	e.state.SetFlowDirection(d)
}

// LoadTextures loads a new tile set from src and switches the engine to it.
// The built series is rebuilt against the new cache (same geometry, new
// material bindings). The previous cache is closed only after the switch
// succeeds, so a failed load leaves the engine on its prior, working set.
func (e *Engine) LoadTextures(ctx context.Context, src tile.Source, opts ...tile.Option) error {
	newCache, err := tile.Load(ctx, src, opts...)
	if err != nil {
		return fmt.Errorf("load textures: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.cache
	e.cache = newCache
	e.series.BindTileCache(newCache)
	e.state.Rebind(newCache)
	e.loop.Rebind(newCache, e.series)
	if err := e.series.Rebuild(0); err != nil && err != ErrNotBuilt {
		// Roll the switch back; the old cache is still intact.
		e.cache = old
		e.series.BindTileCache(old)
		e.state.Rebind(old)
		e.loop.Rebind(old, e.series)
		newCache.Close()
		return fmt.Errorf("rebuild after texture switch: %w", err)
	}
	if old != nil {
		old.Close()
	}
	Logger().Info("texture set switched",
		"tiles", newCache.TileCount(), "layers", newCache.LayerCount())
	return nil
}

// LoadTexturesFromRemote fetches a remote tile set described by desc and
// switches to it. onProgress receives StageDownloading fractions while
// layers arrive and StageBuilding fractions around decode.
func (e *Engine) LoadTexturesFromRemote(ctx context.Context, desc tile.Descriptor, onProgress tile.ProgressFunc, opts ...tile.RemoteOption) error {
	if onProgress != nil {
		opts = append(opts, tile.WithProgress(onProgress))
	}
	src, err := tile.NewRemoteSource(desc, opts...)
	if err != nil {
		return err
	}
	if err := src.Fetch(ctx); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(tile.StageBuilding, 0)
	}
	if err := e.LoadTextures(ctx, src); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(tile.StageBuilding, 1)
	}
	return nil
}

// AdoptDevice uploads the active tile set to the GPU via the host's device
// provider.
func (e *Engine) AdoptDevice(provider gpucontext.DeviceProvider) error {
	e.mu.Lock()
	cache := e.cache
	e.mu.Unlock()
	if cache == nil {
		return ErrNoTileCache
	}
	return cache.AdoptDevice(provider)
}

// Start begins per-frame updates. cb may be nil.
func (e *Engine) Start(cb RenderCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		return ErrNoTileCache
	}
	return e.loop.Start(cb)
}

// Stop halts per-frame updates. Idempotent.
func (e *Engine) Stop() { e.loop.Stop() }

// Frame returns the last presented frame, or nil before the first present.
func (e *Engine) Frame() *image.RGBA {
	return e.comp.Frame()
}

// ExportCurrentFrame returns the last presented frame as PNG bytes.
func (e *Engine) ExportCurrentFrame() ([]byte, error) {
	return EncodeFramePNG(e.comp.Frame())
}

// ExportClip renders durationSeconds of animation at the given fps into the
// configured ClipRecorder, offline and deterministically. The render loop
// must be stopped; ExportClip drives the same per-frame stages itself.
func (e *Engine) ExportClip(durationSeconds float64, fps int) ([]byte, error) {
	if e.loop.Running() {
		return nil, ErrAlreadyRunning
	}
	e.mu.Lock()
	cache, series := e.cache, e.series
	e.mu.Unlock()
	if cache == nil {
		return nil, ErrNoTileCache
	}
	if fps < 1 || durationSeconds <= 0 {
		return nil, fmt.Errorf("ribbon: invalid clip parameters: %gs at %d fps", durationSeconds, fps)
	}

	rec := e.cfg.newRecorder()
	frameTime := time.Second / time.Duration(fps)
	frames := int(durationSeconds * float64(fps))
	for i := 0; i < frames; i++ {
		now := time.Duration(i) * frameTime
		cache.Tick(now)
		if i > 0 {
			cache.AdvanceFlow(frameTime)
		}
		series.UpdateFlowMaterials()
		series.Update(now.Seconds())
		if err := e.comp.Present(series, cache); err != nil {
			return nil, err
		}
		if err := rec.AddFrame(e.comp.Frame()); err != nil {
			return nil, err
		}
	}
	return rec.Finish()
}

// Close stops the loop and closes the active cache.
func (e *Engine) Close() {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.series.Dispose()
	if e.cache != nil {
		e.cache.Close()
		e.cache = nil
	}
}
