package vision

import (
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// CameraConfig selects the capture device and format. Exposure and Gain are
// passed to the driver as-is; nil leaves the device setting alone.
type CameraConfig struct {
	Device   int      `yaml:"device"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	FPS      float64  `yaml:"fps"`
	Exposure *float64 `yaml:"exposure,omitempty"`
	Gain     *float64 `yaml:"gain,omitempty"`
}

// DefaultCameraConfig is 1280x720 at 30 fps on device 0.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{Device: 0, Width: 1280, Height: 720, FPS: 30}
}

// Camera owns a capture device until Close.
type Camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	calib  *Calibration
	logger *zap.Logger
}

// OpenCamera opens the device and applies the configured format.
func OpenCamera(cfg CameraConfig, logger *zap.Logger) (*Camera, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("vision: open camera %d: %w", cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, cfg.FPS)
	if cfg.Exposure != nil {
		vc.Set(gocv.VideoCaptureExposure, *cfg.Exposure)
	}
	if cfg.Gain != nil {
		vc.Set(gocv.VideoCaptureGain, *cfg.Gain)
	}

	logger = logger.Named("camera")
	logger.Info("camera opened",
		zap.Int("device", cfg.Device),
		zap.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		zap.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)),
		zap.Float64("exposure", vc.Get(gocv.VideoCaptureExposure)),
		zap.Float64("gain", vc.Get(gocv.VideoCaptureGain)))

	return &Camera{vc: vc, frame: gocv.NewMat(), logger: logger}, nil
}

// SetCalibration enables undistortion of every frame. nil disables it.
func (c *Camera) SetCalibration(calib *Calibration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calib = calib
}

// SetExposure sets the device exposure.
func (c *Camera) SetExposure(v float64) error {
	return c.set(gocv.VideoCaptureExposure, v)
}

// SetGain sets the device gain.
func (c *Camera) SetGain(v float64) error {
	return c.set(gocv.VideoCaptureGain, v)
}

func (c *Camera) set(prop gocv.VideoCaptureProperties, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return ErrCameraClosed
	}
	c.vc.Set(prop, v)
	return nil
}

// Read captures one frame, undistorted when a calibration is set.
func (c *Camera) Read() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil, ErrCameraClosed
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrNoFrame
	}

	if c.calib != nil {
		undistorted := c.calib.Undistort(c.frame)
		defer undistorted.Close()
		return undistorted.ToImage()
	}
	return c.frame.ToImage()
}

// Close releases the device. Further calls return ErrCameraClosed.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.frame.Close()
	c.vc = nil
	return err
}
