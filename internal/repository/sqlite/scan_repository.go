package sqlite

import (
	"database/sql"
	"fmt"

	"pillscout/internal/model"
)

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `s.id, s.source, s.filename, s.state, s.annotated, s.timestamp, s.filepath, s.filesize`

// Insert adds a new scan record to the database.
func (r *ScanRepository) Insert(scan *model.Scan) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO scans (id, source, filename, state, annotated, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.Source, scan.Filename, scan.State, scan.Annotated, scan.Timestamp, scan.FilePath, scan.FileSize)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// GetByID retrieves a scan by its ID. A missing scan is (nil, nil).
func (r *ScanRepository) GetByID(id string) (*model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+scanColumns+` FROM scans s WHERE s.id = ?`, id)
	scan, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return scan, nil
}

// GetAll retrieves scans based on filter criteria, newest first.
func (r *ScanRepository) GetAll(filter *model.ScanFilter) ([]model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT DISTINCT ` + scanColumns + `
		FROM scans s
		LEFT JOIN scan_detections d ON s.id = d.scan_id
		WHERE 1=1` + where + `
		ORDER BY s.timestamp DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, *scan)
	}

	return scans, rows.Err()
}

// GetTotalCount returns the total count of scans matching the filter.
func (r *ScanRepository) GetTotalCount(filter *model.ScanFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT COUNT(DISTINCT s.id)
		FROM scans s
		LEFT JOIN scan_detections d ON s.id = d.scan_id
		WHERE 1=1` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}

	return count, nil
}

// GetDirectorySize returns the total size of stored scan images in bytes.
func (r *ScanRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM scans`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum scan sizes: %w", err)
	}
	return size, nil
}

// GetStats returns statistics about stored scans.
func (r *ScanRepository) GetStats() (*model.ScanStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.ScanStats{
		PerSource:     make(map[string]int),
		ClassCounts:   make(map[string]int),
		UnknownCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM scans`).Scan(&stats.TotalScans, &stats.TotalSizeBytes); err != nil {
		return nil, err
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scans WHERE state = ?`, model.StateEmpty).Scan(&stats.EmptyScans); err != nil {
		return nil, err
	}

	if err := r.countInto(stats.PerSource, `SELECT source, COUNT(*) FROM scans GROUP BY source`); err != nil {
		return nil, err
	}

	// Most detected classes
	if err := r.countInto(stats.ClassCounts, `
		SELECT class, COUNT(*) AS cnt
		FROM scan_detections
		WHERE matched_key != ''
		GROUP BY class
		ORDER BY cnt DESC
		LIMIT 10
	`); err != nil {
		return nil, err
	}

	// Classes missing from the knowledge base
	if err := r.countInto(stats.UnknownCounts, `
		SELECT class, COUNT(*) AS cnt
		FROM scan_detections
		WHERE matched_key = ''
		GROUP BY class
		ORDER BY cnt DESC
		LIMIT 10
	`); err != nil {
		return nil, err
	}

	return stats, nil
}

// Delete removes a scan and its detections.
func (r *ScanRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scan_detections WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM scans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}

// DeleteAll removes all scans and their detections.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scan_detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM scans`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}

	return nil
}

func (r *ScanRepository) countInto(dst map[string]int, query string) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dst[key] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*model.Scan, error) {
	var scan model.Scan
	if err := row.Scan(&scan.ID, &scan.Source, &scan.Filename, &scan.State, &scan.Annotated, &scan.Timestamp, &scan.FilePath, &scan.FileSize); err != nil {
		return nil, err
	}
	return &scan, nil
}

func buildWhere(filter *model.ScanFilter) (string, []interface{}) {
	query := ""
	args := []interface{}{}

	if filter == nil {
		return query, args
	}

	if filter.Source != "" {
		query += " AND s.source = ?"
		args = append(args, filter.Source)
	}

	if filter.Class != "" {
		query += " AND d.class = ?"
		args = append(args, filter.Class)
	}

	if !filter.StartDate.IsZero() {
		query += " AND DATE(s.timestamp) >= DATE(?)"
		args = append(args, filter.StartDate.Format("2006-01-02"))
	}

	if !filter.EndDate.IsZero() {
		query += " AND DATE(s.timestamp) <= DATE(?)"
		args = append(args, filter.EndDate.Format("2006-01-02"))
	}

	if filter.TimeAfter != "" {
		query += " AND TIME(s.timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter)
	}

	if filter.TimeBefore != "" {
		query += " AND TIME(s.timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore)
	}

	return query, args
}
