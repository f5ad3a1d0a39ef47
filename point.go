package ribbon

import "math"

// Point3 represents a 3D point or vector.
type Point3 struct {
	X, Y, Z float64
}

// Pt3 is a convenience function to create a Point3.
func Pt3(x, y, z float64) Point3 {
	return Point3{X: x, Y: y, Z: z}
}

// Add returns the sum of two points (vector addition).
func (p Point3) Add(q Point3) Point3 {
	return Point3{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point3) Sub(q Point3) Point3 {
	return Point3{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Mul returns the point scaled by a scalar.
func (p Point3) Mul(s float64) Point3 {
	return Point3{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Dot returns the dot product of two vectors.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the 3D cross product.
func (p Point3) Cross(q Point3) Point3 {
	return Point3{
		X: p.Y*q.Z - p.Z*q.Y,
		Y: p.Z*q.X - p.X*q.Z,
		Z: p.X*q.Y - p.Y*q.X,
	}
}

// Length returns the length of the vector.
func (p Point3) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// LengthSquared returns the squared length of the vector.
func (p Point3) LengthSquared() float64 {
	return p.X*p.X + p.Y*p.Y + p.Z*p.Z
}

// Distance returns the distance between two points.
func (p Point3) Distance(q Point3) float64 {
	return p.Sub(q).Length()
}

// Normalize returns a unit vector in the same direction.
// The zero vector normalizes to itself.
func (p Point3) Normalize() Point3 {
	length := p.Length()
	if length == 0 {
		return Point3{}
	}
	return Point3{X: p.X / length, Y: p.Y / length, Z: p.Z / length}
}

// Lerp performs linear interpolation between two points.
// t=0 returns p, t=1 returns q, intermediate values interpolate.
func (p Point3) Lerp(q Point3, t float64) Point3 {
	return Point3{
		X: p.X + (q.X-p.X)*t,
		Y: p.Y + (q.Y-p.Y)*t,
		Z: p.Z + (q.Z-p.Z)*t,
	}
}

// IsFinite reports whether all components are finite numbers.
func (p Point3) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}
