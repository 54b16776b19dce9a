//go:build gocv

package imageprep

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// normalize uses OpenCV when the binary is built with the gocv tag.
// IMReadColor applies EXIF orientation and drops any alpha channel.
func normalize(data []byte, format string, maxDimension int) (*Prepared, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	prepared := &Prepared{
		OriginalWidth:  mat.Cols(),
		OriginalHeight: mat.Rows(),
	}

	w, h := fitWithin(mat.Cols(), mat.Rows(), maxDimension)
	target := mat
	if w != mat.Cols() || h != mat.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(mat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea); err != nil {
			return nil, fmt.Errorf("failed to resize image: %v", err)
		}
		target = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, target, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	prepared.Data = make([]byte, len(buf.GetBytes()))
	copy(prepared.Data, buf.GetBytes())
	prepared.Width = w
	prepared.Height = h
	return prepared, nil
}
