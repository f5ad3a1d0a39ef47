package ribbon

import (
	"sync"
	"time"

	"github.com/gogpu/ribbon/tile"
)

// RenderCallback is invoked once per frame, after animation updates and
// before the draw is presented. now is the loop's monotonic frame time.
type RenderCallback func(now time.Duration)

// FrameScheduler abstracts the platform's frame-scheduling primitive.
// Schedule begins invoking tick once per display frame and returns a cancel
// function that stops the ticks. Ticks are delivered from a single
// goroutine; the engine core is cooperative and frame-driven, never
// concurrent within a frame.
type FrameScheduler interface {
	Schedule(tick func(now time.Duration)) (cancel func())
}

// Presenter issues the draw call for the current frame state.
type Presenter interface {
	Present(series *RibbonSeries, cache *tile.Cache) error
}

// TickerScheduler drives frames from a time.Ticker, for headless operation
// where no display vsync exists.
type TickerScheduler struct {
	// FPS is the target frame rate. Values below 1 run at 60.
	FPS int
}

// Schedule starts a goroutine ticking at the configured rate.
func (s TickerScheduler) Schedule(tick func(now time.Duration)) (cancel func()) {
	fps := s.FPS
	if fps < 1 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	done := make(chan struct{})
	start := time.Now()
	go func() {
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				tick(t.Sub(start))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// ManualScheduler delivers frames only when Step is called. Used by tests
// and by hosts that own their own frame loop (e.g. an ebiten Update).
type ManualScheduler struct {
	mu   sync.Mutex
	tick func(now time.Duration)
}

// Schedule records the tick function. Frames run inside Step.
func (s *ManualScheduler) Schedule(tick func(now time.Duration)) (cancel func()) {
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.tick = nil
		s.mu.Unlock()
	}
}

// Step delivers one frame at the given timestamp. A no-op when nothing is
// scheduled.
func (s *ManualScheduler) Step(now time.Duration) {
	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()
	if tick != nil {
		tick(now)
	}
}

// RenderLoop drives per-frame updates in a fixed order: tile layer cycling,
// flow offset advance, flow-material swap, geometry update, caller
// callback, draw. Later stages may depend on state set by earlier ones
// within the same frame, never the reverse.
//
// The loop has two states, stopped and running. Each tick is synchronous,
// so stopping is immediate: there is no in-flight frame work to await.
type RenderLoop struct {
	mu      sync.Mutex
	running bool
	cancel  func()

	cache     *tile.Cache
	series    *RibbonSeries
	sched     FrameScheduler
	presenter Presenter
	cb        RenderCallback

	lastNow time.Duration
	hasLast bool
}

// NewRenderLoop creates a stopped loop. presenter may be nil, in which case
// the draw stage is skipped (useful for pure-simulation tests).
func NewRenderLoop(cache *tile.Cache, series *RibbonSeries, sched FrameScheduler, presenter Presenter) *RenderLoop {
	return &RenderLoop{
		cache:     cache,
		series:    series,
		sched:     sched,
		presenter: presenter,
	}
}

// Running reports whether the loop is in the running state.
func (l *RenderLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start transitions stopped to running and begins per-frame ticks.
// Returns ErrAlreadyRunning if the loop is already running.
func (l *RenderLoop) Start(cb RenderCallback) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrAlreadyRunning
	}
	l.cb = cb
	l.hasLast = false
	l.running = true
	l.cancel = l.sched.Schedule(l.tick)
	return nil
}

// Stop transitions running to stopped and cancels the scheduled tick.
// Idempotent.
func (l *RenderLoop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.running = false
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Rebind swaps the cache and series the loop drives. Used when the active
// texture set is switched at runtime; takes effect on the next tick.
func (l *RenderLoop) Rebind(cache *tile.Cache, series *RibbonSeries) {
	l.mu.Lock()
	l.cache = cache
	l.series = series
	l.hasLast = false
	l.mu.Unlock()
}

// tick runs one frame.
func (l *RenderLoop) tick(now time.Duration) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cache, series, presenter, cb := l.cache, l.series, l.presenter, l.cb
	dt := time.Duration(0)
	if l.hasLast {
		dt = now - l.lastNow
	}
	l.lastNow = now
	l.hasLast = true
	l.mu.Unlock()

	cache.Tick(now)
	cache.AdvanceFlow(dt)
	series.UpdateFlowMaterials()
	series.Update(now.Seconds())
	if cb != nil {
		cb(now)
	}
	if presenter != nil {
		if err := presenter.Present(series, cache); err != nil {
			Logger().Warn("present failed", "err", err)
		}
	}
}
