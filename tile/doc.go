// Package tile owns the set of loaded texture tiles that together form one
// continuous, animatable texture strip.
//
// A tile is a multi-layer image: the layers are animation frames advanced by
// the layer cycler (see CycleMode). Tiles are loaded once from a Source
// (in-memory, directory archive, or remote descriptor) by Load; no decoding
// happens inside a frame tick.
//
// The Cache is the single owner of tile pixels, GPU textures, and materials.
// Ribbons hold opaque material handles, never owning references, so disposal
// order is always cache-driven.
package tile
