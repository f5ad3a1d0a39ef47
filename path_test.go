package ribbon

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSanitize(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		in   []Point3
		want int
	}{
		{"empty", nil, 0},
		{"clean", []Point3{Pt3(0, 0, 0), Pt3(1, 0, 0)}, 2},
		{"nan dropped", []Point3{Pt3(0, 0, 0), Pt3(nan, 0, 0), Pt3(1, 0, 0)}, 2},
		{"inf dropped", []Point3{Pt3(0, 0, 0), Pt3(math.Inf(1), 0, 0)}, 1},
		{"consecutive duplicates collapsed", []Point3{Pt3(0, 0, 0), Pt3(0, 0, 0), Pt3(1, 0, 0), Pt3(1, 0, 0)}, 2},
		{"all duplicates", []Point3{Pt3(2, 2, 2), Pt3(2, 2, 2), Pt3(2, 2, 2)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if len(got) != tt.want {
				t.Errorf("Sanitize() kept %d points, want %d", len(got), tt.want)
			}
			for _, p := range got {
				if !p.IsFinite() {
					t.Errorf("Sanitize() kept non-finite point %v", p)
				}
			}
		})
	}
}

func TestSanitizeDoesNotModifyInput(t *testing.T) {
	in := []Point3{Pt3(0, 0, 0), Pt3(math.NaN(), 0, 0), Pt3(1, 0, 0)}
	_ = Sanitize(in)
	if !math.IsNaN(in[1].X) {
		t.Error("Sanitize modified its input")
	}
}

func TestResampleErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []Point3
		n    int
	}{
		{"nil input", nil, 10},
		{"one point", []Point3{Pt3(0, 0, 0)}, 10},
		{"duplicates collapse below two", []Point3{Pt3(1, 1, 1), Pt3(1, 1, 1)}, 10},
		{"n too small", []Point3{Pt3(0, 0, 0), Pt3(1, 0, 0)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resample(tt.in, tt.n); err != ErrTooFewPoints {
				t.Errorf("Resample() error = %v, want ErrTooFewPoints", err)
			}
		})
	}
}

func TestResampleStraightLine(t *testing.T) {
	in := []Point3{Pt3(0, 0, 0), Pt3(10, 0, 0)}
	got, err := Resample(in, 5)
	if err != nil {
		t.Fatalf("Resample() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Resample() returned %d points, want 5", len(got))
	}
	for i, p := range got {
		want := 10 * float64(i) / 4
		if !almostEqual(p.X, want, 1e-6) || p.Y != 0 || p.Z != 0 {
			t.Errorf("point %d = %v, want (%g, 0, 0)", i, p, want)
		}
	}
}

func TestResampleCountAndEndpoints(t *testing.T) {
	in := []Point3{Pt3(0, 0, 0), Pt3(1, 2, 0), Pt3(3, -1, 0), Pt3(5, 0, 1)}
	for _, n := range []int{2, 3, 16, 100} {
		got, err := Resample(in, n)
		if err != nil {
			t.Fatalf("Resample(n=%d) error = %v", n, err)
		}
		if len(got) != n {
			t.Errorf("Resample(n=%d) returned %d points", n, len(got))
		}
		if got[0].Distance(in[0]) > 1e-6 {
			t.Errorf("Resample(n=%d) start = %v, want %v", n, got[0], in[0])
		}
		if got[n-1].Distance(in[3]) > 1e-6 {
			t.Errorf("Resample(n=%d) end = %v, want %v", n, got[n-1], in[3])
		}
	}
}

func TestResampleUniformSpacing(t *testing.T) {
	// Wildly uneven input density must produce near-uniform output spacing.
	in := []Point3{Pt3(0, 0, 0), Pt3(0.01, 0, 0), Pt3(0.02, 0, 0), Pt3(10, 0, 0)}
	got, err := Resample(in, 20)
	if err != nil {
		t.Fatalf("Resample() error = %v", err)
	}
	var dists []float64
	for i := 1; i < len(got); i++ {
		dists = append(dists, got[i].Distance(got[i-1]))
	}
	mean := 0.0
	for _, d := range dists {
		mean += d
	}
	mean /= float64(len(dists))
	for i, d := range dists {
		if math.Abs(d-mean) > mean*0.5 {
			t.Errorf("spacing %d = %g deviates from mean %g by more than 50%%", i, d, mean)
		}
	}
}

func TestNormalizeTogetherPreservesRelativeDistance(t *testing.T) {
	pathA := []Point3{Pt3(0, 0, 0), Pt3(1, 0, 0), Pt3(2, 1, 0)}
	pathB := []Point3{Pt3(10, 10, 0), Pt3(11, 10, 0), Pt3(12, 11, 0)}

	before := centroid(pathA).Distance(centroid(pathB))
	beforeExtent := 12.0 // shared box spans x in [0,12]

	out := NormalizeTogether([][]Point3{pathA, pathB}, 2)
	after := centroid(out[0]).Distance(centroid(out[1]))

	// Distances scale by targetSize/extent; the ratio must be preserved.
	wantScale := 2.0 / beforeExtent
	if !almostEqual(after, before*wantScale, 1e-9) {
		t.Errorf("relative centroid distance = %g, want %g", after, before*wantScale)
	}
}

func TestNormalizeTogetherSharedBox(t *testing.T) {
	pathA := []Point3{Pt3(-4, 0, 0), Pt3(0, 0, 0)}
	pathB := []Point3{Pt3(0, 0, 0), Pt3(4, 0, 0)}
	out := NormalizeTogether([][]Point3{pathA, pathB}, 2)

	// Shared box is x in [-4,4]: scale 1/4, center at origin.
	if !almostEqual(out[0][0].X, -1, epsilon) {
		t.Errorf("out[0][0].X = %g, want -1", out[0][0].X)
	}
	if !almostEqual(out[1][1].X, 1, epsilon) {
		t.Errorf("out[1][1].X = %g, want 1", out[1][1].X)
	}
}

func TestNormalizeTogetherDegenerate(t *testing.T) {
	// All points coincident: translate only, no scaling blow-up.
	out := NormalizeTogether([][]Point3{{Pt3(5, 5, 5), Pt3(5, 5, 5)}}, 2)
	for _, p := range out[0] {
		if p.Length() > epsilon {
			t.Errorf("degenerate box point = %v, want origin", p)
		}
	}
}

func TestNormalizeTogetherEmpty(t *testing.T) {
	out := NormalizeTogether(nil, 2)
	if out != nil {
		t.Errorf("NormalizeTogether(nil) = %v, want nil", out)
	}
	empty := NormalizeTogether([][]Point3{{}}, 2)
	if len(empty) != 1 || len(empty[0]) != 0 {
		t.Errorf("NormalizeTogether([[]]) = %v, want one empty path", empty)
	}
}

func centroid(pts []Point3) Point3 {
	var c Point3
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(pts)))
}
