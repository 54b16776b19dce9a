package model

// Detection represents one object returned by the remote detector.
// X and Y are the box centre in source image pixels.
type Detection struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	ClassID     int     `json:"class_id,omitempty"`
	DetectionID string  `json:"detection_id,omitempty"`
}
