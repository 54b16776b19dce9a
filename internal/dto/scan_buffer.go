package dto

import (
	"time"

	"pillscout/internal/model"
)

// BufferedScan holds a finished scan before it is flushed to disk and database.
type BufferedScan struct {
	ID         string
	Source     string
	State      string
	Annotated  bool
	Timestamp  time.Time
	Detections []model.ScanDetection
	Data       []byte
}
