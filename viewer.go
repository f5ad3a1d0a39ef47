package ribbon

import (
	"image/color"
	"sync"

	"github.com/gogpu/ribbon/tile"
)

// FlowDirection is the user-facing flow switch.
type FlowDirection uint8

const (
	// FlowOff disables flow animation.
	FlowOff FlowDirection = iota

	// FlowForward runs the conveyor toward higher tile indices.
	FlowForward

	// FlowBackward runs the conveyor toward lower tile indices.
	FlowBackward
)

// String returns a human-readable direction name.
func (d FlowDirection) String() string {
	switch d {
	case FlowOff:
		return "off"
	case FlowForward:
		return "forward"
	case FlowBackward:
		return "backward"
	default:
		return "unknown"
	}
}

// DefaultFlowSpeed is the flow rate applied when none is configured,
// in tiles per second.
const DefaultFlowSpeed = 1.0

// ViewerState holds the animation and presentation knobs shared between the
// render loop and the UI layer. It is owned by the application root and
// passed by reference; all mutation goes through its setter methods, which
// push derived values into the tile cache.
type ViewerState struct {
	mu sync.Mutex

	cache     *tile.Cache
	comp      *Compositor
	direction FlowDirection
	flowSpeed float64 // magnitude, tiles per second
	bg        color.RGBA
}

// NewViewerState creates viewer state bound to a cache, with flow off, the
// default flow speed, and a black background.
func NewViewerState(cache *tile.Cache) *ViewerState {
	return &ViewerState{
		cache:     cache,
		flowSpeed: DefaultFlowSpeed,
		bg:        color.RGBA{A: 0xFF},
	}
}

// BindCompositor points the state at the compositor that consumes the
// background color and applies the current color to it.
func (v *ViewerState) BindCompositor(c *Compositor) {
	v.mu.Lock()
	v.comp = c
	if v.comp != nil {
		v.comp.SetBackground(v.bg)
	}
	v.mu.Unlock()
}

// Rebind points the state at a different cache and re-applies the current
// flow settings to it.
func (v *ViewerState) Rebind(cache *tile.Cache) {
	v.mu.Lock()
	v.cache = cache
	v.applyLocked()
	v.mu.Unlock()
}

// SetFlowDirection switches flow off, forward, or backward.
func (v *ViewerState) SetFlowDirection(d FlowDirection) {
	v.mu.Lock()
	v.direction = d
	v.applyLocked()
	v.mu.Unlock()
}

// FlowDirection returns the current flow switch position.
func (v *ViewerState) FlowDirection() FlowDirection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.direction
}

// SetFlowSpeed sets the flow rate magnitude in tiles per second.
// Non-positive values restore the default.
func (v *ViewerState) SetFlowSpeed(speed float64) {
	v.mu.Lock()
	if speed <= 0 {
		speed = DefaultFlowSpeed
	}
	v.flowSpeed = speed
	v.applyLocked()
	v.mu.Unlock()
}

// FlowSpeed returns the flow rate magnitude.
func (v *ViewerState) FlowSpeed() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flowSpeed
}

// SetBackground sets the compositor background color.
func (v *ViewerState) SetBackground(c color.RGBA) {
	v.mu.Lock()
	v.bg = c
	if v.comp != nil {
		v.comp.SetBackground(c)
	}
	v.mu.Unlock()
}

// Background returns the compositor background color.
func (v *ViewerState) Background() color.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bg
}

// applyLocked pushes direction and speed into the cache.
// Caller holds v.mu.
func (v *ViewerState) applyLocked() {
	if v.cache == nil {
		return
	}
	switch v.direction {
	case FlowOff:
		v.cache.SetFlowEnabled(false)
	case FlowForward:
		v.cache.SetFlowEnabled(true)
		v.cache.SetFlowSpeed(v.flowSpeed)
	case FlowBackward:
		v.cache.SetFlowEnabled(true)
		v.cache.SetFlowSpeed(-v.flowSpeed)
	}
}
