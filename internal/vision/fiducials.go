package vision

import (
	"errors"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"solderbot/pkg/geometry"
)

var (
	ErrEmptyImage   = errors.New("vision: empty image")
	ErrCameraClosed = errors.New("vision: camera closed")
	ErrNoFrame      = errors.New("vision: no frame read")
)

const rowTolerance = 0.5

// DetectFiducials finds fiducial marks in img and returns their centroids in
// pixels, sorted top to bottom then left to right.
func DetectFiducials(img image.Image, params Params) ([]geometry.Point2D, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return detectFiducials(mat, params), nil
}

func detectFiducials(src gocv.Mat, params Params) []geometry.Point2D {
	gray := toGray(src)
	defer gray.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var centers []geometry.Point2D
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= params.FiducialMinArea || area >= params.FiducialMaxArea {
			continue
		}
		centers = append(centers, geometry.PolygonCentroid(toPoints2D(contour.ToPoints())))
	}

	sortFiducials(centers)
	return centers
}

// sortFiducials orders centroids top to bottom by rows rowTolerance px tall,
// then left to right within a row.
func sortFiducials(centers []geometry.Point2D) {
	row := func(p geometry.Point2D) float64 { return math.Floor(p.Y / rowTolerance) }
	sort.SliceStable(centers, func(i, j int) bool {
		ri, rj := row(centers[i]), row(centers[j])
		if ri != rj {
			return ri < rj
		}
		return centers[i].X < centers[j].X
	})
}

func toPoints2D(pts []image.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
