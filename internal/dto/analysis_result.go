package dto

import (
	"time"

	"pillscout/internal/model"
)

// MedicationCard is one rendered card: a unique detected class and the
// knowledge base record it matched, if any.
type MedicationCard struct {
	Class      string                  `json:"class"`
	Confidence float64                 `json:"confidence"`
	Known      bool                    `json:"known"`
	Record     *model.MedicationRecord `json:"record,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// AnalysisResult is the response to one analyzed image.
type AnalysisResult struct {
	ScanID     string            `json:"scanId"`
	Source     string            `json:"source"`
	State      string            `json:"state"`
	Message    string            `json:"message"`
	ModelID    string            `json:"modelId"`
	Timestamp  time.Time         `json:"timestamp"`
	Detections []model.Detection `json:"detections"`
	Cards      []MedicationCard  `json:"cards"`
	Image      string            `json:"image,omitempty"` // data URL
	Annotated  bool              `json:"annotated"`
	Fallback   bool              `json:"fallback"`
	Warning    string            `json:"warning,omitempty"`

	ImageData []byte `json:"-"`
}

// ScanSummary is broadcast to live feed viewers after each scan.
type ScanSummary struct {
	Type      string    `json:"type"`
	ScanID    string    `json:"scanId"`
	Source    string    `json:"source"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Classes   []string  `json:"classes"`
	Known     []string  `json:"known"`
}
