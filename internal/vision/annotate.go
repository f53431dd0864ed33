package vision

import (
	"image"

	"gocv.io/x/gocv"

	"solderbot/pkg/colorutil"
	"solderbot/pkg/geometry"
)

// Annotate draws detected fiducials and candidates over img. Positions are in
// pixels.
func Annotate(img image.Image, fiducials []geometry.Point2D, candidates []Circle) (image.Image, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, c := range candidates {
		r := int(c.Radius + 0.5)
		if r < 1 {
			r = 1
		}
		gocv.Circle(&mat, toImagePoint(c.Center), r, colorutil.Candidate, 1)
	}
	for _, f := range fiducials {
		c := toImagePoint(f)
		gocv.Line(&mat, c.Add(image.Pt(-6, 0)), c.Add(image.Pt(6, 0)), colorutil.Fiducial, 2)
		gocv.Line(&mat, c.Add(image.Pt(0, -6)), c.Add(image.Pt(0, 6)), colorutil.Fiducial, 2)
	}
	return mat.ToImage()
}

// AnnotateJoint frames a joint image green when acceptable and red
// otherwise.
func AnnotateJoint(img image.Image, a JointAnalysis) (image.Image, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	frame := image.Rect(0, 0, mat.Cols()-1, mat.Rows()-1)
	gocv.Rectangle(&mat, frame, colorutil.ForJoint(a.Acceptable), 2)
	return mat.ToImage()
}

func toImagePoint(p geometry.Point2D) image.Point {
	return image.Point{X: int(p.X + 0.5), Y: int(p.Y + 0.5)}
}
