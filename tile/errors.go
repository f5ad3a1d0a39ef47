package tile

import "errors"

// Errors returned by tile operations.
var (
	// ErrUnavailable is returned when the tile source is unreachable or its
	// content cannot be decoded. A cache whose load failed is unusable; no
	// partial cache is ever returned.
	ErrUnavailable = errors.New("tile: tiles unavailable")

	// ErrClosed is returned when operating on a closed cache.
	ErrClosed = errors.New("tile: cache is closed")

	// ErrEmptySource is returned when a source reports zero tiles or zero
	// layers.
	ErrEmptySource = errors.New("tile: source has no tiles")

	// ErrLayerMismatch is returned when a tile does not carry the layer
	// count the source declared.
	ErrLayerMismatch = errors.New("tile: layer count mismatch")

	// ErrBadDescriptor is returned when a remote descriptor is malformed.
	ErrBadDescriptor = errors.New("tile: bad remote descriptor")

	// ErrNoDevice is returned when a GPU operation is requested before a
	// device has been adopted.
	ErrNoDevice = errors.New("tile: no GPU device adopted")
)
