package sqlite

import (
	"fmt"

	"pillscout/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.ScanDetection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO scan_detections (scan_id, class, matched_key, confidence, x, y, width, height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ScanID, det.Class, det.MatchedKey, det.Confidence, det.X, det.Y, det.Width, det.Height); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByScanID retrieves all detections for a scan in insertion order.
func (r *DetectionRepository) GetByScanID(scanID string) ([]model.ScanDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, scan_id, class, matched_key, confidence, x, y, width, height
		FROM scan_detections WHERE scan_id = ? ORDER BY id
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.ScanDetection
	for rows.Next() {
		var det model.ScanDetection
		if err := rows.Scan(&det.ID, &det.ScanID, &det.Class, &det.MatchedKey, &det.Confidence, &det.X, &det.Y, &det.Width, &det.Height); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetClassesByScanID returns just the class names for a scan.
func (r *DetectionRepository) GetClassesByScanID(scanID string) ([]string, error) {
	return r.queryStrings(`SELECT class FROM scan_detections WHERE scan_id = ? ORDER BY id`, scanID)
}

// GetAllClasses returns a list of all unique detected classes.
func (r *DetectionRepository) GetAllClasses() ([]string, error) {
	return r.queryStrings(`SELECT DISTINCT class FROM scan_detections ORDER BY class`)
}

// DeleteByScanID removes all detections for a specific scan.
func (r *DetectionRepository) DeleteByScanID(scanID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scan_detections WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}

func (r *DetectionRepository) queryStrings(query string, args ...interface{}) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := []string{}
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}

	return classes, rows.Err()
}
