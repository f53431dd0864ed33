package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Defect classifies a solder joint.
type Defect int

const (
	DefectNone Defect = iota
	DefectIrregular
	DefectInsufficient
	DefectExcessive
	DefectVoid
)

func (d Defect) String() string {
	switch d {
	case DefectNone:
		return "none"
	case DefectIrregular:
		return "irregular"
	case DefectInsufficient:
		return "insufficient"
	case DefectExcessive:
		return "excessive"
	case DefectVoid:
		return "void"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Defect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// JointAnalysis is the inspection result for one solder joint image.
// Annotated is only set by Pipeline.AnalyzeJoint.
type JointAnalysis struct {
	Diameter     float64     `json:"diameter"`      // normalized to the nominal joint size
	DiameterPx   float64     `json:"diameter_px"`   // disk-equivalent diameter in pixels
	Area         float64     `json:"area"`          // largest contour area in pixels
	Circularity  float64     `json:"circularity"`   // 4*pi*area/perimeter^2
	VoidFraction float64     `json:"void_fraction"` // share of the outlined area left unfilled
	Quality      float64     `json:"quality"`       // 1 - min(1, mean gradient / scale)
	Defect       Defect      `json:"defect"`
	Acceptable   bool        `json:"acceptable"`
	Annotated    image.Image `json:"-"`
}

// AnalyzeJoint inspects a close-up image of a single joint.
func AnalyzeJoint(img image.Image, params Params) (JointAnalysis, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return JointAnalysis{}, err
	}
	defer mat.Close()
	return analyzeJoint(mat, params), nil
}

func analyzeJoint(src gocv.Mat, params Params) JointAnalysis {
	gray := preprocessJoint(src, params)
	defer gray.Close()

	binary := segmentJoint(gray, params)
	defer binary.Close()

	var a JointAnalysis

	m := gocv.Moments(binary, true)
	a.DiameterPx = math.Sqrt(4 * m["m00"] / math.Pi)
	a.Diameter = a.DiameterPx * params.MMPerPixel / params.NominalJointMM

	a.Quality = 1 - math.Min(1, meanGradient(gray)/params.GradientScale)

	var outlined float64
	a.Area, a.Circularity, outlined = largestContour(binary)
	if outlined > 0 {
		a.VoidFraction = math.Max(0, 1-m["m00"]/outlined)
	}
	a.Defect = classifyDefect(a.Area, a.Circularity, a.VoidFraction, params)

	a.Acceptable = a.Quality > params.MinQuality &&
		a.Defect == DefectNone &&
		a.Diameter > params.MinDiameter && a.Diameter < params.MaxDiameter
	return a
}

// preprocessJoint blurs, stretches contrast and converts to grayscale.
func preprocessJoint(src gocv.Mat, params Params) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	k := params.BlurKernel
	gocv.GaussianBlur(src, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	stretched := gocv.NewMat()
	defer stretched.Close()
	gocv.ConvertScaleAbs(blurred, &stretched, params.ContrastGain, 0)

	return toGray(stretched)
}

// segmentJoint applies Otsu thresholding followed by a morphological close.
func segmentJoint(gray gocv.Mat, params Params) gocv.Mat {
	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: params.CloseKernel, Y: params.CloseKernel})
	defer kernel.Close()
	gocv.MorphologyEx(binary, &binary, gocv.MorphClose, kernel)
	return binary
}

// meanGradient returns the mean Sobel gradient magnitude.
func meanGradient(gray gocv.Mat) float64 {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)
	return mag.Mean().Val1
}

// largestContour returns the area and circularity of the biggest external
// contour and the summed area of every external contour, holes included.
// All are zero when there is no contour.
func largestContour(binary gocv.Mat) (area, circularity, total float64) {
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	for i := 0; i < contours.Size(); i++ {
		a := gocv.ContourArea(contours.At(i))
		total += a
		if best < 0 || a > area {
			best, area = i, a
		}
	}
	if best < 0 {
		return 0, 0, 0
	}
	perimeter := gocv.ArcLength(contours.At(best), true)
	if perimeter > 0 {
		circularity = 4 * math.Pi * area / (perimeter * perimeter)
	}
	return area, circularity, total
}

// classifyDefect checks circularity first, then voids, then the area bounds.
// A missing joint is insufficient.
func classifyDefect(area, circularity, voidFraction float64, params Params) Defect {
	switch {
	case area == 0:
		return DefectInsufficient
	case circularity < params.MinCircularity:
		return DefectIrregular
	case voidFraction > params.MaxVoidFraction:
		return DefectVoid
	case area < params.MinJointArea:
		return DefectInsufficient
	case area > params.MaxJointArea:
		return DefectExcessive
	default:
		return DefectNone
	}
}
