package ribbon

import "errors"

// Errors returned by ribbon operations.
var (
	// ErrNoTileCache is returned when building a ribbon that has no bound
	// tile cache. Binding must happen before Build.
	ErrNoTileCache = errors.New("ribbon: no tile cache bound")

	// ErrNotBuilt is returned when an operation requires a prior successful
	// build (e.g. rebuilding a series that was never built).
	ErrNotBuilt = errors.New("ribbon: not built")

	// ErrTooFewPoints is returned when a path has fewer than two usable
	// points and therefore cannot produce any segment.
	ErrTooFewPoints = errors.New("ribbon: path needs at least two points")

	// ErrAlreadyRunning is returned by RenderLoop.Start when the loop is
	// already in the running state.
	ErrAlreadyRunning = errors.New("ribbon: render loop already running")

	// ErrNoFrame is returned by frame export when nothing has been rendered.
	ErrNoFrame = errors.New("ribbon: no frame to export")
)
