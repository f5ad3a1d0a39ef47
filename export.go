package ribbon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/gogpu/ribbon/tile"
)

// Compositor is the software draw backend: it rasterizes ribbon quads into
// an RGBA frame with an orthographic XY projection. It exists for frame
// export and for running the full engine headlessly; interactive hosts
// usually present through the GPU instead.
//
// Compositor implements Presenter.
type Compositor struct {
	mu     sync.Mutex
	width  int
	height int
	bg     color.RGBA
	frame  *image.RGBA
}

// NewCompositor creates a compositor with the given output size and a black
// background.
func NewCompositor(width, height int) *Compositor {
	return &Compositor{
		width:  width,
		height: height,
		bg:     color.RGBA{A: 0xFF},
	}
}

// SetBackground sets the clear color.
func (c *Compositor) SetBackground(col color.RGBA) {
	c.mu.Lock()
	c.bg = col
	c.mu.Unlock()
}

// Frame returns the last rendered frame, or nil if nothing has been
// presented yet. The returned image is replaced, not mutated, by the next
// Present, so callers may keep it.
func (c *Compositor) Frame() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Present rasterizes the series into a fresh frame.
func (c *Compositor) Present(series *RibbonSeries, cache *tile.Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i+0] = c.bg.R
		frame.Pix[i+1] = c.bg.G
		frame.Pix[i+2] = c.bg.B
		frame.Pix[i+3] = c.bg.A
	}

	sx, sy, scale := c.fit(series)
	blend := clamp01(cache.FlowOffset())
	layer := cache.CurrentLayer()

	for _, r := range series.Ribbons() {
		for _, seg := range r.Segments() {
			m, ok := cache.MaterialAt(seg.Material())
			if !ok {
				continue
			}
			c.drawQuad(frame, seg, m, cache, layer, blend, sx, sy, scale)
		}
	}

	c.frame = frame
	return nil
}

// fit computes the translation and scale that map the series' XY bounds
// onto the canvas with a small margin. An empty series maps the origin to
// the canvas center.
func (c *Compositor) fit(series *RibbonSeries) (sx, sy, scale float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	any := false
	for _, r := range series.Ribbons() {
		for _, seg := range r.Segments() {
			pos := seg.Positions()
			for v := 0; v < 4; v++ {
				x, y := float64(pos[v*3]), float64(pos[v*3+1])
				minX, maxX = math.Min(minX, x), math.Max(maxX, x)
				minY, maxY = math.Min(minY, y), math.Max(maxY, y)
				any = true
			}
		}
	}
	if !any {
		return float64(c.width) / 2, float64(c.height) / 2, 1
	}
	extent := math.Max(maxX-minX, maxY-minY)
	if extent == 0 {
		extent = 1
	}
	const margin = 0.9
	scale = margin * math.Min(float64(c.width), float64(c.height)) / extent
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	sx = float64(c.width)/2 - cx*scale
	sy = float64(c.height)/2 + cy*scale // Y flips: canvas grows downward
	return sx, sy, scale
}

// drawQuad rasterizes one segment quad as two textured triangles.
func (c *Compositor) drawQuad(frame *image.RGBA, seg *Segment, m tile.Material, cache *tile.Cache, layer int, blend, sx, sy, scale float64) {
	pos := seg.Positions()
	uvs := seg.UVs()
	idx := seg.Indices()

	var px, py [4]float64
	for v := 0; v < 4; v++ {
		px[v] = sx + float64(pos[v*3])*scale
		py[v] = sy - float64(pos[v*3+1])*scale
	}

	cur := cache.Layer(m.Tile, layer)
	var nxt *image.RGBA
	if m.Kind == tile.KindFlow {
		nxt = cache.Layer(m.Next, layer)
	}

	for t := 0; t < len(idx); t += 3 {
		i0, i1, i2 := idx[t], idx[t+1], idx[t+2]
		c.fillTriangle(frame,
			px[i0], py[i0], float64(uvs[i0*2]), float64(uvs[i0*2+1]),
			px[i1], py[i1], float64(uvs[i1*2]), float64(uvs[i1*2+1]),
			px[i2], py[i2], float64(uvs[i2*2]), float64(uvs[i2*2+1]),
			cur, nxt, blend)
	}
}

// fillTriangle rasterizes one textured triangle with edge functions and
// barycentric UV interpolation.
func (c *Compositor) fillTriangle(frame *image.RGBA,
	x0, y0, u0, v0, x1, y1, u1, v1, x2, y2, u2, v2 float64,
	cur, nxt *image.RGBA, blend float64) {

	area := (x1-x0)*(y2-y0) - (y1-y0)*(x2-x0)
	if area == 0 {
		return
	}

	minX := int(math.Floor(math.Min(x0, math.Min(x1, x2))))
	maxX := int(math.Ceil(math.Max(x0, math.Max(x1, x2))))
	minY := int(math.Floor(math.Min(y0, math.Min(y1, y2))))
	maxY := int(math.Ceil(math.Max(y0, math.Max(y1, y2))))
	minX, maxX = max(minX, 0), min(maxX, c.width-1)
	minY, maxY = max(minY, 0), min(maxY, c.height-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			w0 := ((x1-fx)*(y2-fy) - (y1-fy)*(x2-fx)) / area
			w1 := ((x2-fx)*(y0-fy) - (y2-fy)*(x0-fx)) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			u := w0*u0 + w1*u1 + w2*u2
			v := w0*v0 + w1*v1 + w2*v2
			col := sampleBilinear(cur, u, v)
			if nxt != nil {
				col = mix(col, sampleBilinear(nxt, u, v), blend)
			}
			o := frame.PixOffset(x, y)
			frame.Pix[o+0] = col.R
			frame.Pix[o+1] = col.G
			frame.Pix[o+2] = col.B
			frame.Pix[o+3] = col.A
		}
	}
}

// sampleBilinear samples an RGBA image at normalized UV with bilinear
// filtering and clamped edges.
func sampleBilinear(img *image.RGBA, u, v float64) color.RGBA {
	if img == nil {
		return color.RGBA{}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	fx := clamp01(u)*float64(w) - 0.5
	fy := clamp01(v)*float64(h) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	texel := func(x, y int) (r, g, bb, a float64) {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		return float64(img.Pix[o]), float64(img.Pix[o+1]), float64(img.Pix[o+2]), float64(img.Pix[o+3])
	}

	r00, g00, b00, a00 := texel(x0, y0)
	r10, g10, b10, a10 := texel(x0+1, y0)
	r01, g01, b01, a01 := texel(x0, y0+1)
	r11, g11, b11, a11 := texel(x0+1, y0+1)

	lerp2 := func(c00, c10, c01, c11 float64) uint8 {
		top := c00 + (c10-c00)*tx
		bot := c01 + (c11-c01)*tx
		return uint8(top + (bot-top)*ty)
	}
	return color.RGBA{
		R: lerp2(r00, r10, r01, r11),
		G: lerp2(g00, g10, g01, g11),
		B: lerp2(b00, b10, b01, b11),
		A: lerp2(a00, a10, a01, a11),
	}
}

// mix blends two colors, t=0 returning a and t=1 returning b.
func mix(a, b color.RGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), A: l(a.A, b.A)}
}

// clamp01 clamps x into [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// EncodeFramePNG encodes one frame as PNG bytes.
func EncodeFramePNG(frame *image.RGBA) ([]byte, error) {
	if frame == nil {
		return nil, ErrNoFrame
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ClipRecorder consumes the frames of an exported clip and produces the
// final encoded bytes. Video encoding is the platform's job; the engine
// only drives frame production.
type ClipRecorder interface {
	// AddFrame receives one rendered frame in presentation order.
	AddFrame(frame *image.RGBA) error

	// Finish returns the encoded clip.
	Finish() ([]byte, error)
}

// PNGSequenceRecorder is the built-in ClipRecorder: it encodes every frame
// as PNG and concatenates them. PNG streams are self-delimiting, so a
// consumer can split the sequence back into frames.
type PNGSequenceRecorder struct {
	buf bytes.Buffer
}

// AddFrame appends one PNG-encoded frame.
func (r *PNGSequenceRecorder) AddFrame(frame *image.RGBA) error {
	return png.Encode(&r.buf, frame)
}

// Finish returns the concatenated PNG stream.
func (r *PNGSequenceRecorder) Finish() ([]byte, error) {
	return r.buf.Bytes(), nil
}
