package ribbon

import (
	"slices"

	"github.com/gogpu/ribbon/tile"
)

// Ribbon is the renderable form of one path: an ordered list of quad
// segments, each bound to one global tile index.
//
// A ribbon must be bound to a tile cache before building. SetSegmentOffset
// must be called before Build: the offset is baked into segment tile
// indices at build time, not re-read later.
type Ribbon struct {
	cache         *tile.Cache
	segments      []*Segment
	segmentOffset int

	// lastPoints/lastWidth are retained so the ribbon can be rebuilt in
	// place when the texture set changes but the geometry should not.
	lastPoints []Point3
	lastWidth  float64

	built bool
}

// NewRibbon creates a ribbon bound to the given tile cache.
func NewRibbon(cache *tile.Cache) *Ribbon {
	return &Ribbon{cache: cache}
}

// BindTileCache rebinds the ribbon to a different cache. Takes effect on
// the next build.
func (r *Ribbon) BindTileCache(cache *tile.Cache) { r.cache = cache }

// SetSegmentOffset sets the base added to every segment's local position to
// form its global tile index. The owning series assigns offsets so indices
// are contiguous across ribbons. Must be called before Build.
func (r *Ribbon) SetSegmentOffset(offset int) { r.segmentOffset = offset }

// SegmentOffset returns the ribbon's segment offset.
func (r *Ribbon) SegmentOffset() int { return r.segmentOffset }

// SegmentCount returns the number of built segments.
func (r *Ribbon) SegmentCount() int { return len(r.segments) }

// Segments returns the built segments in path order.
// The slice is owned by the ribbon.
func (r *Ribbon) Segments() []*Segment { return r.segments }

// Build constructs quad segments from a point sequence. Any previously
// built segments are disposed first. points is copied; the caller keeps
// ownership of its slice. t is the animation time used for the initial
// wave framing.
//
// Fails with ErrNoTileCache when no cache is bound and ErrTooFewPoints when
// fewer than two usable points remain after sanitizing.
func (r *Ribbon) Build(points []Point3, width float64, t float64) error {
	if r.cache == nil {
		return ErrNoTileCache
	}
	clean := Sanitize(points)
	if len(clean) < 2 {
		return ErrTooFewPoints
	}

	r.disposeSegments()

	flow := r.cache.FlowActive()
	r.segments = make([]*Segment, 0, len(clean)-1)
	for i := 0; i < len(clean)-1; i++ {
		seg := newSegment(clean[i], clean[i+1], width, i, r.segmentOffset, t)
		if flow {
			seg.material = r.cache.FlowMaterial(seg.tileIndex)
		} else {
			seg.material = r.cache.Material(seg.tileIndex)
		}
		r.segments = append(r.segments, seg)
	}

	r.lastPoints = slices.Clone(clean)
	r.lastWidth = width
	r.built = true

	Logger().Debug("ribbon built",
		"segments", len(r.segments), "offset", r.segmentOffset, "width", width)
	return nil
}

// Rebuild reruns Build with the cached points and width. Used when the
// texture set changes but geometry should not.
func (r *Ribbon) Rebuild(t float64) error {
	if !r.built {
		return ErrNotBuilt
	}
	return r.Build(r.lastPoints, r.lastWidth, t)
}

// Update re-frames segment vertices for animation time t without touching
// tile indices or materials.
func (r *Ribbon) Update(t float64) {
	for i, seg := range r.segments {
		seg.frame(r.lastPoints[i], r.lastPoints[i+1], r.lastWidth, i, t)
	}
}

// refreshMaterials reassigns every segment's material handle for the
// current flow mode and base tile offset. Called by the owning series.
func (r *Ribbon) refreshMaterials(flow bool) {
	for _, seg := range r.segments {
		if flow {
			seg.material = r.cache.FlowMaterial(seg.tileIndex)
		} else {
			seg.material = r.cache.Material(seg.tileIndex)
		}
	}
}

// disposeSegments disposes all built segments.
func (r *Ribbon) disposeSegments() {
	for _, seg := range r.segments {
		seg.dispose()
	}
	r.segments = nil
}

// Dispose releases the ribbon's geometry. Safe to call multiple times and
// on a never-built ribbon.
func (r *Ribbon) Dispose() {
	r.disposeSegments()
	r.lastPoints = nil
	r.built = false
}
