package ribbon

import (
	"image/color"
	"testing"
	"time"
)

func TestViewerStateFlowControl(t *testing.T) {
	cache := testCache(t, 3, 1)
	vs := NewViewerState(cache)

	if vs.FlowDirection() != FlowOff {
		t.Errorf("initial direction = %v, want FlowOff", vs.FlowDirection())
	}
	if cache.FlowActive() {
		t.Error("flow active before any direction set")
	}

	vs.SetFlowDirection(FlowForward)
	if !cache.FlowActive() {
		t.Error("flow inactive after FlowForward")
	}

	vs.SetFlowDirection(FlowBackward)
	cache.AdvanceFlow(time.Second)
	if got := cache.FlowOffset(); got >= 0 {
		t.Errorf("offset moves forward (%g) in backward mode", got)
	}

	vs.SetFlowDirection(FlowOff)
	if cache.FlowActive() {
		t.Error("flow active after FlowOff")
	}
}

func TestViewerStateSpeedMagnitude(t *testing.T) {
	cache := testCache(t, 3, 1)
	vs := NewViewerState(cache)
	vs.SetFlowDirection(FlowBackward)
	vs.SetFlowSpeed(2.5)
	if got := vs.FlowSpeed(); got != 2.5 {
		t.Errorf("FlowSpeed() = %g, want 2.5", got)
	}
	// Direction is owned by the direction setting; non-positive speeds fall
	// back to the default rate.
	vs.SetFlowSpeed(-3)
	if got := vs.FlowSpeed(); got != DefaultFlowSpeed {
		t.Errorf("FlowSpeed(-3) stored %g, want default %g", got, DefaultFlowSpeed)
	}
	cache.AdvanceFlow(time.Second)
	if got := cache.FlowOffset(); got >= 0 {
		t.Errorf("backward flow moved forward: offset %g", got)
	}
}

func TestViewerStateRebind(t *testing.T) {
	first := testCache(t, 3, 1)
	vs := NewViewerState(first)
	vs.SetFlowDirection(FlowForward)
	vs.SetFlowSpeed(2)

	next := testCache(t, 2, 1)
	vs.Rebind(next)
	if !next.FlowActive() {
		t.Error("rebound cache did not receive the flow settings")
	}
	next.AdvanceFlow(500 * time.Millisecond) // half a second at speed 2
	if got := next.FlowOffset(); !almostEqual(got, 1, 1e-9) {
		t.Errorf("offset = %g, want 1", got)
	}
}

func TestViewerStateBackground(t *testing.T) {
	vs := NewViewerState(nil)
	want := color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xFF}
	vs.SetBackground(want)
	if got := vs.Background(); got != want {
		t.Errorf("Background() = %v, want %v", got, want)
	}
	// Nil cache: flow controls are inert but safe.
	vs.SetFlowDirection(FlowForward)
	vs.SetFlowSpeed(1)
}
