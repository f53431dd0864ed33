// Package scan loads board images from disk.
package scan

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
)

const mmPerInch = 25.4

// Scan is a decoded board image and the resolution recorded in its file.
type Scan struct {
	Path  string
	Image image.Image
	DPI   float64 // 0 when the file carries no resolution
}

// MMPerPixel converts the recorded DPI to a board scale. It returns 0 when
// the DPI is unknown.
func (s *Scan) MMPerPixel() float64 {
	if s.DPI <= 0 {
		return 0
	}
	return mmPerInch / s.DPI
}

// Load decodes a PNG, JPEG or TIFF image. TIFF resolution tags are read
// into DPI.
func Load(path string) (*Scan, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("scan: unsupported image format %q", filepath.Ext(path))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scan: open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("scan: decode %s: %w", path, err)
	}

	s := &Scan{Path: path, Image: img}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tiff" || ext == ".tif" {
		if dpi, err := extractTIFFDPI(file); err == nil {
			s.DPI = dpi
		}
	}
	return s, nil
}

// extractTIFFDPI reads the XResolution/YResolution tags of the first IFD.
func extractTIFFDPI(r io.ReadSeeker) (float64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("scan: not a TIFF file")
	}

	if _, err := r.Seek(int64(byteOrder.Uint32(header[4:8])), io.SeekStart); err != nil {
		return 0, err
	}
	var numEntries uint16
	if err := binary.Read(r, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // inches
	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		value := byteOrder.Uint32(entry[8:12])

		switch {
		case tag == 282 && fieldType == 5: // XResolution, RATIONAL
			xRes = readRational(r, int64(value), byteOrder)
		case tag == 283 && fieldType == 5: // YResolution
			yRes = readRational(r, int64(value), byteOrder)
		case tag == 296 && fieldType == 3: // ResolutionUnit, SHORT
			resUnit = byteOrder.Uint16(entry[8:10])
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if dpi == 0 {
		return 0, fmt.Errorf("scan: no resolution tags")
	}
	if resUnit == 3 { // centimeters
		dpi *= 2.54
	}
	return dpi, nil
}

// readRational reads two uint32s at offset and restores the read position.
func readRational(r io.ReadSeeker, offset int64, byteOrder binary.ByteOrder) float64 {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	defer r.Seek(cur, io.SeekStart)

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0
	}
	var num, denom uint32
	if binary.Read(r, byteOrder, &num) != nil || binary.Read(r, byteOrder, &denom) != nil || denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// SupportedFormats returns the accepted image extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks the extension of path.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
