package ribbon

import (
	"math"
	"slices"

	"github.com/gogpu/ribbon/tile"
)

// RibbonSeries orchestrates ribbons built from multiple paths so that their
// segment tile indices are globally contiguous: the animated texture strip
// flows across path boundaries exactly as if they were one path.
//
// Offsets are assigned in path order with no gaps:
//
//	offset(ribbon[i+1]) = offset(ribbon[i]) + segmentCount(ribbon[i])
//
// The series also owns the flow-material lifecycle: it decides per build
// whether segments carry dual-tile flow materials or cheaper single-tile
// materials, and it performs the per-frame swap that marches the conveyor
// forward.
type RibbonSeries struct {
	cache   *tile.Cache
	ribbons []*Ribbon

	totalSegments int

	// Cached inputs for rebuild-on-texture-change.
	lastPaths [][]Point3
	lastWidth float64

	// Flow bookkeeping for change detection.
	flowWasActive  bool
	lastBaseOffset int

	built bool
}

// NewSeries creates a series bound to the given tile cache.
func NewSeries(cache *tile.Cache) *RibbonSeries {
	return &RibbonSeries{cache: cache}
}

// SegmentCount returns the total segment count across all ribbons.
func (s *RibbonSeries) SegmentCount() int { return s.totalSegments }

// Ribbons returns the series' ribbons in path order.
func (s *RibbonSeries) Ribbons() []*Ribbon { return s.ribbons }

// BindTileCache rebinds the series and its ribbons to a different cache.
// Takes effect on the next build or rebuild.
func (s *RibbonSeries) BindTileCache(cache *tile.Cache) {
	s.cache = cache
	for _, r := range s.ribbons {
		r.BindTileCache(cache)
	}
}

// BuildFromMultiplePaths builds one ribbon per path with contiguous segment
// offsets. Paths with fewer than two usable points are skipped with a
// warning; the build continues with the remaining paths. An empty path list
// is not an error: it leaves the series empty but valid.
//
// Previously built ribbons are disposed before the new path data is cached,
// so a failed or retried build never leaves stale state visible.
func (s *RibbonSeries) BuildFromMultiplePaths(paths [][]Point3, width float64, t float64) error {
	if s.cache == nil {
		return ErrNoTileCache
	}

	s.cleanupRibbons()

	s.lastPaths = make([][]Point3, len(paths))
	for i, p := range paths {
		s.lastPaths[i] = slices.Clone(p)
	}
	s.lastWidth = width

	offset := 0
	for i, p := range paths {
		r := NewRibbon(s.cache)
		r.SetSegmentOffset(offset)
		if err := r.Build(p, width, t); err != nil {
			Logger().Warn("skipping path", "path", i, "err", err)
			continue
		}
		s.ribbons = append(s.ribbons, r)
		offset += r.SegmentCount()
	}
	s.totalSegments = offset
	s.built = true

	s.InitFlowMaterials()

	Logger().Debug("series built",
		"paths", len(paths), "ribbons", len(s.ribbons), "segments", s.totalSegments)
	return nil
}

// Rebuild reconstructs every ribbon from the cached paths and width against
// the current tile cache. Segment counts and geometry are unchanged; only
// material bindings move, which is what a texture-set switch needs.
func (s *RibbonSeries) Rebuild(t float64) error {
	if !s.built {
		return ErrNotBuilt
	}
	return s.BuildFromMultiplePaths(s.lastPaths, s.lastWidth, t)
}

// InitFlowMaterials assigns every segment the material matching the current
// flow mode: dual-tile blend materials while flow is active, single-tile
// materials otherwise. The binary branch avoids the extra GPU sampling and
// blend cost of dual-tile materials when no flow animation is visible.
//
// Records the mode and base tile offset for the change detection in
// UpdateFlowMaterials.
func (s *RibbonSeries) InitFlowMaterials() {
	if s.cache == nil {
		return
	}
	active := s.cache.FlowActive()
	// Dropping all previous materials keeps the index free of leaked
	// single-tile materials after a mode transition.
	s.cache.InvalidateMaterials()
	for _, r := range s.ribbons {
		r.refreshMaterials(active)
	}
	s.flowWasActive = active
	s.lastBaseOffset = s.cache.BaseTileOffset()
}

// UpdateFlowMaterials is called once per frame, after the cache has
// advanced the flow offset and before geometry updates.
//
// A flow-mode transition (toggled on/off, or speed moved through zero)
// re-initializes all materials and returns: materials must match the new
// mode before any other update this frame. Otherwise, when the offset has
// left [0, 1), the whole-tile part is folded into the cache's base tile
// offset and every segment's flow material is recreated at its shifted
// index. The fractional remainder stays behind as the blend factor, so the
// animation marches in discrete tile steps while the blend stays
// continuous.
func (s *RibbonSeries) UpdateFlowMaterials() {
	if s.cache == nil {
		return
	}
	active := s.cache.FlowActive()
	if active != s.flowWasActive {
		s.InitFlowMaterials()
		return
	}
	if !active {
		return
	}

	offset := s.cache.FlowOffset()
	if offset >= 0 && offset < 1 {
		return
	}

	// floor gives the whole-tile count for both directions: a frame that
	// jumps 0.95 -> 3.4 shifts by 3, and 0.05 -> -2.3 shifts by -3,
	// leaving the remainder in [0, 1) either way.
	wholeTiles := int(math.Floor(offset))
	s.cache.WrapFlowOffset(wholeTiles)
	for _, r := range s.ribbons {
		r.refreshMaterials(true)
	}
	s.lastBaseOffset = s.cache.BaseTileOffset()
}

// Update re-frames every ribbon's geometry for animation time t.
func (s *RibbonSeries) Update(t float64) {
	for _, r := range s.ribbons {
		r.Update(t)
	}
}

// cleanupRibbons disposes all ribbons without touching cached paths.
func (s *RibbonSeries) cleanupRibbons() {
	for _, r := range s.ribbons {
		r.Dispose()
	}
	s.ribbons = nil
	s.totalSegments = 0
}

// Cleanup disposes all ribbons and clears the cached paths and flow
// bookkeeping. The series can be reused by building again.
func (s *RibbonSeries) Cleanup() {
	s.cleanupRibbons()
	s.lastPaths = nil
	s.lastWidth = 0
	s.flowWasActive = false
	s.lastBaseOffset = 0
	s.built = false
}

// Dispose is Cleanup; it exists so a series satisfies the same lifecycle
// shape as ribbons and segments.
func (s *RibbonSeries) Dispose() { s.Cleanup() }
