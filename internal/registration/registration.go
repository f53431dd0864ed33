// Package registration computes the image-to-machine transform of a PCB from
// its detected fiducial markers.
package registration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"solderbot/pkg/geometry"
)

// ErrTooFewFiducials is returned when fewer than two fiducials are available.
var ErrTooFewFiducials = errors.New("registration: need at least 2 fiducials")

// MinFiducials is the number of fiducials a registration needs.
const MinFiducials = 2

// Transform is a rigid rotation about the first fiducial. It carries no scale
// correction and ignores fiducials beyond the second.
type Transform struct {
	Pivot  geometry.Point2D
	Angle  float64 // radians
	affine geometry.AffineTransform
}

// Compute builds the two-point registration: the rotation angle is the
// direction from the first to the second fiducial, applied about the first.
func Compute(fiducials []geometry.Point2D) (Transform, error) {
	if len(fiducials) < MinFiducials {
		return Transform{}, fmt.Errorf("%w: got %d", ErrTooFewFiducials, len(fiducials))
	}

	ref1, ref2 := fiducials[0], fiducials[1]
	angle := math.Atan2(ref2.Y-ref1.Y, ref2.X-ref1.X)

	return Transform{
		Pivot:  ref1,
		Angle:  angle,
		affine: rotateAbout(ref1, angle),
	}, nil
}

// rotateAbout composes translate(pivot) * rotate(angle) * translate(-pivot)
// as homogeneous 3x3 matrices.
func rotateAbout(pivot geometry.Point2D, angle float64) geometry.AffineTransform {
	cos, sin := math.Cos(angle), math.Sin(angle)

	toPivot := mat.NewDense(3, 3, []float64{
		1, 0, pivot.X,
		0, 1, pivot.Y,
		0, 0, 1,
	})
	rotate := mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
	fromPivot := mat.NewDense(3, 3, []float64{
		1, 0, -pivot.X,
		0, 1, -pivot.Y,
		0, 0, 1,
	})

	var m mat.Dense
	m.Product(toPivot, rotate, fromPivot)

	return geometry.AffineTransform{
		A: m.At(0, 0), B: m.At(0, 1), TX: m.At(0, 2),
		C: m.At(1, 0), D: m.At(1, 1), TY: m.At(1, 2),
	}
}

// Identity returns a transform that leaves every point unchanged.
func Identity() Transform {
	return Transform{affine: geometry.Identity()}
}

// Apply maps a point's XY through the transform. Z is unaffected.
func (t Transform) Apply(p geometry.Point3D) geometry.Point3D {
	return t.Affine().Apply3D(p)
}

// ApplyAll maps every point in place.
func (t Transform) ApplyAll(points []geometry.Point3D) {
	a := t.Affine()
	for i := range points {
		points[i] = a.Apply3D(points[i])
	}
}

// Affine returns the 2x3 matrix form of the transform.
func (t Transform) Affine() geometry.AffineTransform {
	if t.affine == (geometry.AffineTransform{}) {
		return geometry.Identity()
	}
	return t.affine
}

// AngleDegrees returns the rotation angle in degrees.
func (t Transform) AngleDegrees() float64 {
	return t.Angle * 180 / math.Pi
}
