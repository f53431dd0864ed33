// Package colorutil holds the overlay colors used when annotating board
// images.
package colorutil

import "image/color"

// Overlay colors.
var (
	Fiducial  = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	Candidate = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Accepted  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Rejected  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// ForJoint returns the overlay color for an inspected joint.
func ForJoint(acceptable bool) color.RGBA {
	if acceptable {
		return Accepted
	}
	return Rejected
}
