// Package imageprep turns an uploaded photo into the JPEG payload sent to the
// detection service. Everything happens in memory, so concurrent requests
// never share a temporary file.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"

	// DefaultMaxDimension bounds the longest side of the prepared image.
	DefaultMaxDimension = 1600
	// DefaultMaxPixels bounds width*height of the decoded upload.
	DefaultMaxPixels    = 40_000_000
	jpegQuality         = 90
)

var (
	ErrEmptyImage        = errors.New("empty image")
	ErrUnsupportedFormat = errors.New("unsupported image format, only JPEG and PNG are accepted")
	ErrInvalidImage      = errors.New("invalid image")
)

// Prepared is a normalized JPEG image.
type Prepared struct {
	Data           []byte
	SourceFormat   string
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
}

// Prepare validates the format, applies orientation, scales the image down
// so that neither side exceeds maxDimension and re-encodes it as JPEG.
// The header is checked against maxPixels before anything is decoded.
func Prepare(data []byte, maxDimension, maxPixels int) (*Prepared, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	if err := checkDimensions(data, maxPixels); err != nil {
		return nil, err
	}

	prepared, err := normalize(data, format, maxDimension)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare %s image: %v", ErrInvalidImage, format, err)
	}
	prepared.SourceFormat = format
	return prepared, nil
}

// DetectFormat sniffs the content and accepts JPEG and PNG only.
func DetectFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return FormatJPEG, nil
	case "image/png":
		return FormatPNG, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// checkDimensions reads only the image header.
func checkDimensions(data []byte, maxPixels int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: failed to read image header: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// fitWithin returns the size of w x h scaled down to fit a square of side limit.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
