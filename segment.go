package ribbon

import (
	"math"

	"github.com/gogpu/ribbon/tile"
)

// Segment is one textured quad of a ribbon, spanning two consecutive path
// points. It owns its vertex data; the material is a cache-owned handle.
type Segment struct {
	// positions holds 4 vertices as x,y,z triples:
	// start-left, start-right, end-right, end-left.
	positions []float32

	// uvs holds the matching texture coordinates. u runs along the ribbon
	// within the segment's tile, v runs across the width.
	uvs []float32

	// indices splits the quad into two triangles.
	indices []uint16

	// tileIndex is the segment's global tile index: its local position in
	// the path plus the ribbon's segment offset.
	tileIndex int

	// material references the cache-owned material for this segment.
	material tile.Handle

	disposed bool
}

// quadIndices is the triangle split shared by every segment quad.
var quadIndices = [6]uint16{0, 1, 2, 0, 2, 3}

// waveAmplitude and waveFrequency shape the geometry-level undulation
// applied by Update.
const (
	waveAmplitude = 0.035
	waveFrequency = 2.0
)

// newSegment builds the quad between p0 and p1. local is the segment's
// position within its path, offset the ribbon's segment offset, t the
// animation time in seconds.
func newSegment(p0, p1 Point3, width float64, local, offset int, t float64) *Segment {
	s := &Segment{
		positions: make([]float32, 12),
		uvs:       []float32{0, 0, 0, 1, 1, 1, 1, 0},
		indices:   quadIndices[:],
		tileIndex: local + offset,
		material:  tile.NoMaterial,
	}
	s.frame(p0, p1, width, local, t)
	return s
}

// frame positions the quad's vertices along the local tangent, displaced by
// the wave undulation for time t.
func (s *Segment) frame(p0, p1 Point3, width float64, local int, t float64) {
	dir := p1.Sub(p0).Normalize()

	// Side vector perpendicular to the tangent, preferring the XY plane so
	// mostly-flat paths get upright ribbons. A tangent parallel to Z falls
	// back to the X axis.
	up := Pt3(0, 0, 1)
	side := dir.Cross(up)
	if side.LengthSquared() < 1e-12 {
		side = Pt3(1, 0, 0)
	}
	side = side.Normalize().Mul(width / 2)

	wave0 := waveAmplitude * math.Sin(waveFrequency*t+float64(local)*0.5)
	wave1 := waveAmplitude * math.Sin(waveFrequency*t+float64(local+1)*0.5)
	a := p0.Add(Pt3(0, 0, wave0))
	b := p1.Add(Pt3(0, 0, wave1))

	set := func(i int, p Point3) {
		s.positions[i*3+0] = float32(p.X)
		s.positions[i*3+1] = float32(p.Y)
		s.positions[i*3+2] = float32(p.Z)
	}
	set(0, a.Sub(side))
	set(1, a.Add(side))
	set(2, b.Add(side))
	set(3, b.Sub(side))
}

// TileIndex returns the segment's global tile index.
func (s *Segment) TileIndex() int { return s.tileIndex }

// Material returns the segment's current material handle.
func (s *Segment) Material() tile.Handle { return s.material }

// Positions returns the quad vertex positions as x,y,z triples.
// The slice is owned by the segment; callers must not modify it.
func (s *Segment) Positions() []float32 { return s.positions }

// UVs returns the quad texture coordinates as u,v pairs.
func (s *Segment) UVs() []float32 { return s.uvs }

// Indices returns the quad's triangle indices.
func (s *Segment) Indices() []uint16 { return s.indices }

// dispose releases the segment's geometry. The material handle is dropped,
// not destroyed: materials are cache-owned. Idempotent.
func (s *Segment) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.positions = nil
	s.uvs = nil
	s.indices = nil
	s.material = tile.NoMaterial
}
