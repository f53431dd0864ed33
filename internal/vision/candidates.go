package vision

import (
	"image"

	"gocv.io/x/gocv"

	"solderbot/pkg/geometry"
)

// Circle is a detected solder pad candidate in pixels.
type Circle struct {
	Center geometry.Point2D `json:"center"`
	Radius float64          `json:"radius"`
}

// DetectSolderCandidates finds round pads with a circular Hough transform.
func DetectSolderCandidates(img image.Image, params Params) ([]Circle, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return detectCandidates(mat, params), nil
}

func detectCandidates(src gocv.Mat, params Params) []Circle {
	gray := toGray(src)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := params.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		params.HoughDP, params.HoughMinDist,
		params.HoughParam1, params.HoughParam2,
		params.MinRadius, params.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}

	out := make([]Circle, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		out[i] = Circle{
			Center: geometry.Point2D{
				X: float64(circles.GetFloatAt(0, i*3)),
				Y: float64(circles.GetFloatAt(0, i*3+1)),
			},
			Radius: float64(circles.GetFloatAt(0, i*3+2)),
		}
	}
	return out
}
