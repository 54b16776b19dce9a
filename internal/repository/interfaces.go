package repository

import (
	"pillscout/internal/model"
)

// ScanRepository defines the interface for scan data operations.
type ScanRepository interface {
	// Create operations
	Insert(scan *model.Scan) error

	// Read operations
	GetByID(id string) (*model.Scan, error)
	GetAll(filter *model.ScanFilter) ([]model.Scan, error)
	GetTotalCount(filter *model.ScanFilter) (int, error)
	GetDirectorySize() (int64, error)
	GetStats() (*model.ScanStats, error)

	// Delete operations
	Delete(id string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for scan detection operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.ScanDetection) error

	// Read operations
	GetByScanID(scanID string) ([]model.ScanDetection, error)
	GetClassesByScanID(scanID string) ([]string, error)
	GetAllClasses() ([]string, error)

	// Delete operations
	DeleteByScanID(scanID string) error
}
