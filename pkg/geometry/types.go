// Package geometry provides the geometric types shared by the vision, registration,
// sequencing and safety packages.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
// Image coordinates are in pixels, machine coordinates in millimeters.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Point3D is a machine-space position in millimeters.
type Point3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// NewPoint3D creates a new Point3D.
func NewPoint3D(x, y, z float64) Point3D {
	return Point3D{X: x, Y: y, Z: z}
}

// Add returns the component-wise sum.
func (p Point3D) Add(other Point3D) Point3D {
	return Point3D{X: p.X + other.X, Y: p.Y + other.Y, Z: p.Z + other.Z}
}

// Sub returns the component-wise difference.
func (p Point3D) Sub(other Point3D) Point3D {
	return Point3D{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Scale returns the point scaled by a factor.
func (p Point3D) Scale(factor float64) Point3D {
	return Point3D{X: p.X * factor, Y: p.Y * factor, Z: p.Z * factor}
}

// Neg returns the point mirrored through the origin.
func (p Point3D) Neg() Point3D {
	return Point3D{X: -p.X, Y: -p.Y, Z: -p.Z}
}

// Length returns the Euclidean norm.
func (p Point3D) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Distance returns the Euclidean distance to another point.
func (p Point3D) Distance(other Point3D) float64 {
	return p.Sub(other).Length()
}

// XY projects the point onto the XY plane.
func (p Point3D) XY() Point2D {
	return Point2D{X: p.X, Y: p.Y}
}

// ApproxEqual reports whether every component differs by at most tol.
func (p Point3D) ApproxEqual(other Point3D, tol float64) bool {
	return math.Abs(p.X-other.X) <= tol &&
		math.Abs(p.Y-other.Y) <= tol &&
		math.Abs(p.Z-other.Z) <= tol
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Contains returns true if the XY position lies within [0,Width]x[0,Height].
func (s Size) Contains(p Point2D) bool {
	return p.X >= 0 && p.X <= s.Width && p.Y >= 0 && p.Y <= s.Height
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Apply3D applies the transform to the XY components of a point. Z is unchanged.
func (t AffineTransform) Apply3D(p Point3D) Point3D {
	xy := t.Apply(p.XY())
	return Point3D{X: xy.X, Y: xy.Y, Z: p.Z}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
