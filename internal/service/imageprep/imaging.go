//go:build !gocv

package imageprep

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

func normalize(data []byte, format string, maxDimension int) (*Prepared, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	prepared := &Prepared{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	// JPEG has no alpha channel; flatten transparent PNGs onto white.
	if format == FormatPNG {
		background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		img = imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
	}

	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxDimension)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}

	prepared.Data = buf.Bytes()
	prepared.Width = w
	prepared.Height = h
	return prepared, nil
}
