package ribbon

import (
	"testing"
	"time"

	"github.com/gogpu/ribbon/tile"
)

// recordingPresenter records each Present call's observed frame state.
type recordingPresenter struct {
	presents int
	offsets  []float64
	layers   []int
}

func (p *recordingPresenter) Present(series *RibbonSeries, cache *tile.Cache) error {
	p.presents++
	p.offsets = append(p.offsets, cache.FlowOffset())
	p.layers = append(p.layers, cache.CurrentLayer())
	return nil
}

func newLoopFixture(t *testing.T) (*tile.Cache, *RibbonSeries, *ManualScheduler, *recordingPresenter, *RenderLoop) {
	t.Helper()
	cache := testCache(t, 5, 3, tile.WithLayerFPS(10))
	series := NewSeries(cache)
	if err := series.BuildFromMultiplePaths([][]Point3{linePath(4)}, 0.2, 0); err != nil {
		t.Fatalf("build: %v", err)
	}
	sched := &ManualScheduler{}
	pres := &recordingPresenter{}
	return cache, series, sched, pres, NewRenderLoop(cache, series, sched, pres)
}

func TestRenderLoopStartStop(t *testing.T) {
	_, _, sched, pres, loop := newLoopFixture(t)

	if loop.Running() {
		t.Fatal("new loop reports running")
	}
	sched.Step(0) // before Start: nothing scheduled
	if pres.presents != 0 {
		t.Fatal("tick delivered before Start")
	}

	if err := loop.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !loop.Running() {
		t.Error("Running() = false after Start")
	}
	if err := loop.Start(nil); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	sched.Step(0)
	sched.Step(16 * time.Millisecond)
	if pres.presents != 2 {
		t.Errorf("presents = %d, want 2", pres.presents)
	}

	loop.Stop()
	loop.Stop() // idempotent
	if loop.Running() {
		t.Error("Running() = true after Stop")
	}
	sched.Step(32 * time.Millisecond)
	if pres.presents != 2 {
		t.Errorf("tick delivered after Stop: presents = %d", pres.presents)
	}

	// The loop restarts cleanly.
	if err := loop.Start(nil); err != nil {
		t.Fatalf("restart: %v", err)
	}
	sched.Step(48 * time.Millisecond)
	if pres.presents != 3 {
		t.Errorf("presents after restart = %d, want 3", pres.presents)
	}
}

func TestRenderLoopStageOrder(t *testing.T) {
	cache, _, sched, pres, loop := newLoopFixture(t)
	cache.SetFlowEnabled(true)
	cache.SetFlowSpeed(1)

	var cbOffsets []float64
	cb := func(now time.Duration) {
		// The callback runs after flow advance, so it observes the same
		// offset the presenter will.
		cbOffsets = append(cbOffsets, cache.FlowOffset())
	}
	if err := loop.Start(cb); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sched.Step(0)
	sched.Step(500 * time.Millisecond)

	if len(pres.offsets) != 2 || len(cbOffsets) != 2 {
		t.Fatalf("presents = %d, callbacks = %d, want 2 each", len(pres.offsets), len(cbOffsets))
	}
	// First frame has no previous timestamp: dt is zero, offset unchanged.
	if pres.offsets[0] != 0 {
		t.Errorf("first frame offset = %g, want 0", pres.offsets[0])
	}
	// Second frame advanced half a second at speed 1.
	if !almostEqual(pres.offsets[1], 0.5, 1e-9) {
		t.Errorf("second frame offset = %g, want 0.5", pres.offsets[1])
	}
	for i := range cbOffsets {
		if cbOffsets[i] != pres.offsets[i] {
			t.Errorf("frame %d: callback offset %g != presented offset %g",
				i, cbOffsets[i], pres.offsets[i])
		}
	}
}

func TestRenderLoopTicksLayers(t *testing.T) {
	_, _, sched, pres, loop := newLoopFixture(t)
	if err := loop.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Layer FPS 10: one step each 100ms.
	sched.Step(0)
	sched.Step(100 * time.Millisecond)
	sched.Step(200 * time.Millisecond)
	want := []int{0, 1, 2}
	for i, w := range want {
		if pres.layers[i] != w {
			t.Errorf("frame %d layer = %d, want %d", i, pres.layers[i], w)
		}
	}
}

func TestRenderLoopRebind(t *testing.T) {
	_, _, sched, pres, loop := newLoopFixture(t)
	if err := loop.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Step(0)

	next := testCache(t, 3, 1)
	nextSeries := NewSeries(next)
	if err := nextSeries.BuildFromMultiplePaths([][]Point3{linePath(3)}, 0.2, 0); err != nil {
		t.Fatalf("build: %v", err)
	}
	next.SetFlowEnabled(true)
	next.SetFlowSpeed(2)
	loop.Rebind(next, nextSeries)

	// Rebind resets the frame clock: the first tick after it must not apply
	// a giant dt from the previous cache's timeline.
	sched.Step(10 * time.Second)
	if got := next.FlowOffset(); got != 0 {
		t.Errorf("flow offset after rebind = %g, want 0 (dt reset)", got)
	}
	sched.Step(10*time.Second + 250*time.Millisecond)
	if got := next.FlowOffset(); !almostEqual(got, 0.5, 1e-9) {
		t.Errorf("flow offset = %g, want 0.5", got)
	}
	if pres.presents != 3 {
		t.Errorf("presents = %d, want 3", pres.presents)
	}
}

func TestTickerSchedulerDelivers(t *testing.T) {
	sched := TickerScheduler{FPS: 100}
	ch := make(chan time.Duration, 1)
	cancel := sched.Schedule(func(now time.Duration) {
		select {
		case ch <- now:
		default:
		}
	})
	defer cancel()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick within 2s")
	}
	cancel()
	cancel() // idempotent
}

func TestManualSchedulerCancel(t *testing.T) {
	sched := &ManualScheduler{}
	var ticks int
	cancel := sched.Schedule(func(time.Duration) { ticks++ })
	sched.Step(0)
	cancel()
	sched.Step(time.Millisecond)
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
}
