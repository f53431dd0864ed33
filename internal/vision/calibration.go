package vision

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"solderbot/pkg/geometry"
)

// Calibration holds the camera intrinsics and lens distortion. The matrix is
// stored row-major.
type Calibration struct {
	CameraMatrix []float64 `yaml:"camera_matrix"`
	Distortion   []float64 `yaml:"distortion_coefficients"`
	Width        int       `yaml:"width,omitempty"`
	Height       int       `yaml:"height,omitempty"`
}

// NewCalibration builds a pinhole calibration with focal lengths fx, fy and
// principal point (cx, cy).
func NewCalibration(fx, fy, cx, cy float64, distortion ...float64) *Calibration {
	return &Calibration{
		CameraMatrix: []float64{fx, 0, cx, 0, fy, cy, 0, 0, 1},
		Distortion:   append([]float64(nil), distortion...),
	}
}

// LoadCalibration reads a YAML calibration file.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Calibration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("vision: parse calibration %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the calibration as YAML.
func (c *Calibration) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the matrix shape and that it is invertible.
func (c *Calibration) Validate() error {
	if len(c.CameraMatrix) != 9 {
		return fmt.Errorf("vision: camera matrix needs 9 values, got %d", len(c.CameraMatrix))
	}
	switch len(c.Distortion) {
	case 0, 4, 5, 8, 12, 14:
	default:
		return fmt.Errorf("vision: %d distortion coefficients is not a valid model", len(c.Distortion))
	}
	if mat.Det(c.Matrix()) == 0 {
		return fmt.Errorf("vision: camera matrix is singular")
	}
	return nil
}

// Matrix returns the 3x3 intrinsic matrix.
func (c *Calibration) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, append([]float64(nil), c.CameraMatrix...))
}

// Normalize maps a pixel to normalized image coordinates (K^-1 * [u v 1]).
// Distortion is not removed.
func (c *Calibration) Normalize(px geometry.Point2D) (geometry.Point2D, error) {
	var inv mat.Dense
	if err := inv.Inverse(c.Matrix()); err != nil {
		return geometry.Point2D{}, fmt.Errorf("vision: invert camera matrix: %w", err)
	}
	var out mat.VecDense
	out.MulVec(&inv, mat.NewVecDense(3, []float64{px.X, px.Y, 1}))
	w := out.AtVec(2)
	return geometry.Point2D{X: out.AtVec(0) / w, Y: out.AtVec(1) / w}, nil
}

// Undistort removes lens distortion from src into a new Mat.
func (c *Calibration) Undistort(src gocv.Mat) gocv.Mat {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer k.Close()
	for i, v := range c.CameraMatrix {
		k.SetDoubleAt(i/3, i%3, v)
	}

	d := gocv.NewMatWithSize(1, len(c.Distortion), gocv.MatTypeCV64F)
	defer d.Close()
	for i, v := range c.Distortion {
		d.SetDoubleAt(0, i, v)
	}

	dst := gocv.NewMat()
	gocv.Undistort(src, &dst, k, d, k)
	return dst
}
