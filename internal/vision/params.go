package vision

import (
	"fmt"
	"image"
)

// Params holds every tunable of the vision pipeline. Pixel quantities refer
// to the camera image; MMPerPixel maps them onto the board.
type Params struct {
	// Fiducial contour area range in pixels (exclusive).
	FiducialMinArea float64 `yaml:"fiducial_min_area"`
	FiducialMaxArea float64 `yaml:"fiducial_max_area"`

	// Solder candidate Hough circle parameters.
	BlurKernel   int     `yaml:"blur_kernel"`
	HoughDP      float64 `yaml:"hough_dp"`
	HoughMinDist float64 `yaml:"hough_min_dist"`
	HoughParam1  float64 `yaml:"hough_param1"`
	HoughParam2  float64 `yaml:"hough_param2"`
	MinRadius    int     `yaml:"min_radius"`
	MaxRadius    int     `yaml:"max_radius"`

	// Joint analysis.
	ContrastGain   float64 `yaml:"contrast_gain"`
	CloseKernel    int     `yaml:"close_kernel"`
	GradientScale  float64 `yaml:"gradient_scale"`
	MinCircularity float64 `yaml:"min_circularity"`
	MinJointArea   float64 `yaml:"min_joint_area"`
	MaxJointArea   float64 `yaml:"max_joint_area"`
	// MaxVoidFraction is the largest unfilled share of the joint outline.
	MaxVoidFraction float64 `yaml:"max_void_fraction"`
	MinQuality      float64 `yaml:"min_quality"`
	MinDiameter     float64 `yaml:"min_diameter"`
	MaxDiameter     float64 `yaml:"max_diameter"`
	NominalJointMM  float64 `yaml:"nominal_joint_mm"`

	// Board scale and the silkscreen label area (pixels).
	MMPerPixel  float64         `yaml:"mm_per_pixel"`
	LabelRegion image.Rectangle `yaml:"-"`
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		FiducialMinArea: 100,
		FiducialMaxArea: 1000,

		BlurKernel:   5,
		HoughDP:      1,
		HoughMinDist: 20,
		HoughParam1:  50,
		HoughParam2:  30,
		MinRadius:    1,
		MaxRadius:    30,

		ContrastGain:    1.2,
		CloseKernel:     5,
		GradientScale:   100,
		MinCircularity:  0.8,
		MinJointArea:    100,
		MaxJointArea:    500,
		MaxVoidFraction: 0.1,
		MinQuality:      0.8,
		MinDiameter:     0.8,
		MaxDiameter:     1.2,
		NominalJointMM:  1.0,

		MMPerPixel: 0.07,
	}
}

// WithScale returns a copy of p with a different board scale.
func (p Params) WithScale(mmPerPixel float64) Params {
	p.MMPerPixel = mmPerPixel
	return p
}

// Validate rejects parameter sets the pipeline cannot run with.
func (p Params) Validate() error {
	switch {
	case p.FiducialMinArea < 0 || p.FiducialMinArea >= p.FiducialMaxArea:
		return fmt.Errorf("vision: fiducial area range [%g,%g] is empty", p.FiducialMinArea, p.FiducialMaxArea)
	case p.BlurKernel <= 0 || p.BlurKernel%2 == 0:
		return fmt.Errorf("vision: blur kernel %d must be odd and positive", p.BlurKernel)
	case p.CloseKernel <= 0:
		return fmt.Errorf("vision: close kernel %d must be positive", p.CloseKernel)
	case p.MinRadius < 0 || p.MaxRadius < p.MinRadius:
		return fmt.Errorf("vision: radius range [%d,%d] is invalid", p.MinRadius, p.MaxRadius)
	case p.HoughDP <= 0 || p.HoughMinDist <= 0:
		return fmt.Errorf("vision: hough dp and min distance must be positive")
	case p.GradientScale <= 0:
		return fmt.Errorf("vision: gradient scale must be positive")
	case p.MaxVoidFraction < 0 || p.MaxVoidFraction > 1:
		return fmt.Errorf("vision: max void fraction %g is outside [0,1]", p.MaxVoidFraction)
	case p.MMPerPixel <= 0 || p.NominalJointMM <= 0:
		return fmt.Errorf("vision: mm per pixel and nominal joint size must be positive")
	}
	return nil
}
