package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// imageToMat converts a Go image.Image to a BGR OpenCV Mat.
func imageToMat(srcImg image.Image) (gocv.Mat, error) {
	if srcImg == nil {
		return gocv.NewMat(), ErrEmptyImage
	}
	bounds := srcImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := srcImg.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// toGray returns a single-channel copy of a BGR Mat.
func toGray(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}
