package ribbon

import "math"

// minPointDistance is the distance under which two consecutive points are
// treated as duplicates by Sanitize.
const minPointDistance = 1e-9

// Sanitize returns a copy of pts with non-finite points and consecutive
// duplicates removed. The input is never modified.
func Sanitize(pts []Point3) []Point3 {
	out := make([]Point3, 0, len(pts))
	for _, p := range pts {
		if !p.IsFinite() {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Sub(p).LengthSquared() < minPointDistance*minPointDistance {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Resample smooths pts into exactly n points using a centripetal
// Catmull-Rom spline sampled uniformly by arc length, so the density of the
// output is independent of the density of the raw input.
//
// The input is sanitized first. Fewer than two usable points or n < 2
// returns ErrTooFewPoints.
func Resample(pts []Point3, n int) ([]Point3, error) {
	clean := Sanitize(pts)
	if len(clean) < 2 || n < 2 {
		return nil, ErrTooFewPoints
	}
	if len(clean) == 2 {
		// A straight segment needs no spline.
		out := make([]Point3, n)
		for i := range out {
			out[i] = clean[0].Lerp(clean[1], float64(i)/float64(n-1))
		}
		return out, nil
	}

	// Dense evaluation of the spline, then uniform re-sampling by
	// accumulated chord length. 8 subdivisions per input span is enough
	// for visually smooth ribbons at typical path sizes.
	const subdiv = 8
	dense := make([]Point3, 0, (len(clean)-1)*subdiv+1)
	for i := 0; i < len(clean)-1; i++ {
		p0 := clean[max(i-1, 0)]
		p1 := clean[i]
		p2 := clean[i+1]
		p3 := clean[min(i+2, len(clean)-1)]
		for s := 0; s < subdiv; s++ {
			t := float64(s) / subdiv
			dense = append(dense, catmullRom(p0, p1, p2, p3, t))
		}
	}
	dense = append(dense, clean[len(clean)-1])

	// Cumulative arc length over the dense polyline.
	acc := make([]float64, len(dense))
	for i := 1; i < len(dense); i++ {
		acc[i] = acc[i-1] + dense[i].Distance(dense[i-1])
	}
	total := acc[len(acc)-1]
	if total == 0 {
		return nil, ErrTooFewPoints
	}

	out := make([]Point3, n)
	out[0] = dense[0]
	j := 1
	for i := 1; i < n; i++ {
		want := total * float64(i) / float64(n-1)
		for j < len(acc)-1 && acc[j] < want {
			j++
		}
		span := acc[j] - acc[j-1]
		t := 0.0
		if span > 0 {
			t = (want - acc[j-1]) / span
		}
		out[i] = dense[j-1].Lerp(dense[j], t)
	}
	return out, nil
}

// catmullRom evaluates a centripetal Catmull-Rom spline through p1..p2 at
// parameter t in [0,1], with p0 and p3 as outer control points.
func catmullRom(p0, p1, p2, p3 Point3, t float64) Point3 {
	// Centripetal parameterization (alpha = 0.5) avoids the cusps and
	// self-intersections the uniform variant produces on uneven input.
	t0 := 0.0
	t1 := t0 + knotInterval(p0, p1)
	t2 := t1 + knotInterval(p1, p2)
	t3 := t2 + knotInterval(p2, p3)

	u := t1 + (t2-t1)*t

	a1 := lerpKnot(p0, p1, t0, t1, u)
	a2 := lerpKnot(p1, p2, t1, t2, u)
	a3 := lerpKnot(p2, p3, t2, t3, u)
	b1 := lerpKnot(a1, a2, t0, t2, u)
	b2 := lerpKnot(a2, a3, t1, t3, u)
	return lerpKnot(b1, b2, t1, t2, u)
}

// knotInterval returns the centripetal knot spacing between two points.
// Coincident control points get a tiny positive spacing to keep the
// interpolation well defined.
func knotInterval(p, q Point3) float64 {
	d := math.Sqrt(p.Distance(q))
	if d < 1e-9 {
		return 1e-9
	}
	return d
}

// lerpKnot interpolates between points a and b as the parameter u moves
// across the knot interval [ta, tb].
func lerpKnot(a, b Point3, ta, tb, u float64) Point3 {
	if tb == ta {
		return a
	}
	return a.Lerp(b, (u-ta)/(tb-ta))
}

// NormalizeTogether rescales all paths with one shared bounding box so that
// their largest extent equals targetSize and the shared box is centered at
// the origin. Using a single box preserves the relative arrangement of the
// paths: two strokes drawn side by side stay side by side.
//
// Empty paths pass through unchanged. A degenerate shared box (all points
// coincident) is translated to the origin without scaling.
func NormalizeTogether(paths [][]Point3, targetSize float64) [][]Point3 {
	lo := Point3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := Point3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	any := false
	for _, path := range paths {
		for _, p := range path {
			any = true
			lo.X = math.Min(lo.X, p.X)
			lo.Y = math.Min(lo.Y, p.Y)
			lo.Z = math.Min(lo.Z, p.Z)
			hi.X = math.Max(hi.X, p.X)
			hi.Y = math.Max(hi.Y, p.Y)
			hi.Z = math.Max(hi.Z, p.Z)
		}
	}
	if !any {
		return paths
	}

	extent := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z))
	scale := 1.0
	if extent > 0 {
		scale = targetSize / extent
	}
	center := lo.Add(hi).Mul(0.5)

	out := make([][]Point3, len(paths))
	for i, path := range paths {
		np := make([]Point3, len(path))
		for j, p := range path {
			np[j] = p.Sub(center).Mul(scale)
		}
		out[i] = np
	}
	return out
}
