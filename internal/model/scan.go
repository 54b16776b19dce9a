package model

import "time"

const (
	SourceCamera = "camera"
	SourceUpload = "upload"
	SourceCLI    = "cli"

	StateDetected = "detected"
	StateEmpty    = "empty"
)

// Scan represents a stored analysis of one image.
type Scan struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename"`
	State     string    `json:"state"`
	Annotated bool      `json:"annotated"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// ScanDetection is a deduplicated detection belonging to a scan.
type ScanDetection struct {
	ID         int64   `json:"id"`
	ScanID     string  `json:"scan_id"`
	Class      string  `json:"class"`
	MatchedKey string  `json:"matched_key"` // empty when the class is unknown
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// ScanFilter contains filtering options for querying scans.
type ScanFilter struct {
	Source     string
	Class      string
	StartDate  time.Time
	EndDate    time.Time
	TimeAfter  string
	TimeBefore string
	Limit      int
	Offset     int
}

// ScanStats contains statistics about stored scans.
type ScanStats struct {
	TotalScans     int            `json:"total_scans"`
	EmptyScans     int            `json:"empty_scans"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerSource      map[string]int `json:"per_source"`
	ClassCounts    map[string]int `json:"class_counts"`
	UnknownCounts  map[string]int `json:"unknown_counts"`
}
