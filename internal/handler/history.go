package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/repository"
)

// GetScansHandler returns a filtered, paginated list of stored scans.
func GetScansHandler(cfg *config.Config, logger *logger.Logger,
	scanRepo repository.ScanRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := dto.ScanFilters{
			Source:     q.Get("source"),
			Class:      q.Get("class"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Page:       atoiDefault(q.Get("page"), 1),
			Limit:      atoiDefault(q.Get("limit"), 24),
		}
		filter := toScanFilter(filters)

		scans, err := scanRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying scans from database: %v", err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := scanRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting image directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := scanRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting scans: %v", err)
			totalCount = len(scans)
		}

		infos := make([]dto.ScanInfo, 0, len(scans))
		for _, scan := range scans {
			classes, err := detectionRepo.GetClassesByScanID(scan.ID)
			if err != nil {
				logger.Error("Error getting classes for scan %s: %v", scan.ID, err)
				classes = []string{}
			}

			infos = append(infos, dto.ScanInfo{
				ID:        scan.ID,
				Name:      scan.Filename,
				Source:    scan.Source,
				State:     scan.State,
				Annotated: scan.Annotated,
				Date:      scan.Timestamp,
				TimeOfDay: scan.Timestamp,
				Classes:   classes,
			})
		}

		data := dto.ScansData{
			Scans:       infos,
			Size:        totalSize,
			MaxSize:     cfg.MaxImageDirectorySize,
			Length:      totalCount,
			TotalPages:  (totalCount + filters.Limit - 1) / filters.Limit,
			CurrentPage: filters.Page,
			Limit:       filters.Limit,
		}

		if err := writeJSON(w, http.StatusOK, data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewScanHandler serves the stored image of the scan given by the "id" query parameter.
func ViewScanHandler(logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			sendErrorResponse(w, CodeInvalidRequest, "id parameter is required", http.StatusBadRequest)
			return
		}

		scan, err := scanRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading scan %s: %v", id, err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if scan == nil {
			sendErrorResponse(w, CodeNotFound, "Scan not found", http.StatusNotFound)
			return
		}

		http.ServeFile(w, r, scan.FilePath)
	}
}

// DeleteScanHandler removes a scan from disk and database.
func DeleteScanHandler(logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			sendErrorResponse(w, CodeInvalidRequest, "id parameter is required", http.StatusBadRequest)
			return
		}

		scan, err := scanRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading scan %s: %v", id, err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if scan == nil {
			sendErrorResponse(w, CodeNotFound, "Scan not found", http.StatusNotFound)
			return
		}

		if err := os.Remove(scan.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", scan.FilePath, err)
		}

		if err := scanRepo.Delete(id); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted scan: %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

// ClearScansHandler deletes all files from the image directory and clears the database.
func ClearScansHandler(cfg *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading image directory: %v", err)
			sendErrorResponse(w, CodeInternal, "Unable to read image directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if !file.IsDir() {
				filePath := filepath.Join(cfg.ImageDirectory, file.Name())
				if err := os.Remove(filePath); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		if err := scanRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("All scans cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ScanStatsHandler reports totals and the most frequent classes.
func ScanStatsHandler(logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := scanRepo.GetStats()
		if err != nil {
			logger.Error("Error computing scan stats: %v", err)
			sendErrorResponse(w, CodeInternal, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func toScanFilter(f dto.ScanFilters) *model.ScanFilter {
	filter := &model.ScanFilter{
		Source:    f.Source,
		Class:     f.Class,
		StartDate: f.DateAfter,
		EndDate:   f.DateBefore,
		Limit:     f.Limit,
		Offset:    (f.Page - 1) * f.Limit,
	}
	if !f.TimeAfter.IsZero() {
		filter.TimeAfter = f.TimeAfter.Format("15:04")
	}
	if !f.TimeBefore.IsZero() {
		filter.TimeBefore = f.TimeBefore.Format("15:04")
	}
	return filter
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
