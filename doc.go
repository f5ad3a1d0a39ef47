// Package ribbon renders ribbon-shaped 3D surfaces that follow arbitrary
// paths, textured with a strip of pre-encoded multi-layer image tiles.
//
// # Overview
//
// A ribbon is built from a point sequence: each adjacent point pair becomes
// one textured quad segment, and each segment is bound to one tile of the
// active tile set. When several paths are rendered together, RibbonSeries
// assigns globally contiguous tile indices across them so a single animated
// texture strip appears to run through every path.
//
// Two independent animations are supported:
//
//   - Layer cycling: every tile carries an array of image layers that are
//     advanced at a fixed rate, either wrapping ("waves") or ping-pong
//     ("planes"). See the tile package.
//   - Flow: the tile-to-segment assignment slides along the ribbon over
//     time, like a conveyor belt. Segments carry dual-tile blend materials
//     while flow is active and cheap single-tile materials otherwise.
//
// # Quick start
//
//	src, err := tile.NewMemorySource(images)
//	if err != nil {
//	    return err
//	}
//	cache, err := tile.Load(ctx, src)
//	if err != nil {
//	    return err
//	}
//	eng := ribbon.NewEngine(ribbon.WithTileCache(cache))
//	if _, err := eng.BuildRibbonSeries(paths, 0.1); err != nil {
//	    return err
//	}
//	eng.SetFlowState(ribbon.FlowForward)
//	eng.Start(func(now time.Duration) { /* per-frame hook */ })
//
// # Logging
//
// ribbon produces no log output by default. Call [SetLogger] to enable it.
package ribbon
