package tile

// MaterialKind distinguishes the two material variants produced by the
// cache. A tagged variant replaces stringly-keyed material dispatch: render
// submission switches on Kind and nothing else.
type MaterialKind uint8

const (
	// KindSingle samples one tile at the current cycling layer. Used while
	// flow animation is inactive because it needs only one texture fetch.
	KindSingle MaterialKind = iota

	// KindFlow samples two adjacent tiles and blends them by the current
	// flow offset. Used while flow animation is active.
	KindFlow
)

// String returns a human-readable name for the kind.
func (k MaterialKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindFlow:
		return "flow"
	default:
		return "unknown"
	}
}

// Material describes how one ribbon segment samples the tile strip.
//
// A Material never owns pixels or GPU resources; Tile and Next are indices
// into the owning cache, already wrapped into [0, TileCount). The blend
// factor of a flow material is not stored here: it is the cache's live flow
// offset, read at draw time, so blending stays continuous between the
// discrete tile re-binds.
type Material struct {
	// Kind selects single-tile or dual-tile sampling.
	Kind MaterialKind

	// Tile is the wrapped index of the primary tile.
	Tile int

	// Next is the wrapped index of the successor tile. Only meaningful for
	// KindFlow; zero otherwise.
	Next int
}

// Handle is an opaque reference to a cache-owned material. Segments hold
// handles, never Material pointers, so the cache can invalidate every
// material in one step without chasing ribbon-side references.
//
// A handle is only valid until the next call to InvalidateMaterials (flow
// swaps trigger it internally); resolve it per frame with Cache.MaterialAt.
type Handle int

// NoMaterial is the zero handle, resolving to no material.
const NoMaterial Handle = -1
