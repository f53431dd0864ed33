package vision

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// LabelChars is the character set of board identifiers.
const LabelChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-_."

// LabelReader reads the board identifier from its silkscreen with Tesseract.
type LabelReader struct {
	mu     sync.Mutex
	client *gosseract.Client
	region image.Rectangle
}

// NewLabelReader creates a reader for the given image region. An empty
// region reads the whole image.
func NewLabelReader(region image.Rectangle) (*LabelReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("vision: set OCR language: %w", err)
	}
	// Board identifiers are not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &LabelReader{client: client, region: region}, nil
}

// Close releases the Tesseract client.
func (r *LabelReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// ReadLabel returns the cleaned label text, or "" if nothing was recognized.
func (r *LabelReader) ReadLabel(img image.Image) (string, error) {
	src, err := imageToMat(img)
	if err != nil {
		return "", err
	}
	defer src.Close()

	region := r.region
	if region.Empty() {
		region = image.Rect(0, 0, src.Cols(), src.Rows())
	}
	region = region.Intersect(image.Rect(0, 0, src.Cols(), src.Rows()))
	if region.Empty() {
		return "", fmt.Errorf("vision: label region outside image")
	}

	crop := src.Region(region)
	defer crop.Close()

	processed := preprocessLabel(crop)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("vision: encode label: %w", err)
	}
	defer buf.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return "", fmt.Errorf("vision: label reader closed")
	}
	if err := r.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("vision: set PSM: %w", err)
	}
	if err := r.client.SetWhitelist(LabelChars); err != nil {
		return "", fmt.Errorf("vision: set whitelist: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("vision: set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("vision: OCR failed: %w", err)
	}
	return cleanLabel(text), nil
}

// preprocessLabel upscales small crops and binarizes dark text on a light
// background.
func preprocessLabel(region gocv.Mat) gocv.Mat {
	scaled := region.Clone()
	if h := region.Rows(); h > 0 && h < 100 {
		scale := 100.0 / float64(h)
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	}
	defer scaled.Close()

	gray := toGray(scaled)
	defer gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Silkscreen is usually light on dark; Tesseract wants the opposite.
	if white := gocv.CountNonZero(binary); white*2 < binary.Rows()*binary.Cols() {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary
}

// cleanLabel upper-cases the text and joins its tokens with single spaces.
func cleanLabel(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), " "))
}
