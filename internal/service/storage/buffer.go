package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/repository"
)

const (
	// DefaultBufferLimit is used when the configured limit is not positive.
	DefaultBufferLimit = 20
	// DefaultFlushInterval is used when the configured interval is not positive.
	DefaultFlushInterval = 30 * time.Second
)

// BufferService buffers finished scans in memory and periodically flushes
// them to the image directory and the history database.
type BufferService struct {
	imagesDir     string
	limit         int
	interval      time.Duration
	scans         []dto.BufferedScan
	mu            sync.Mutex
	logger        *logger.Logger
	scanRepo      repository.ScanRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a new BufferService with the target directory and repositories.
func NewBufferService(cfg *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository, detectionRepo repository.DetectionRepository) *BufferService {
	limit := cfg.ImageBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := time.Duration(cfg.ImageBufferFlushInterval) * time.Second
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &BufferService{
		imagesDir:     cfg.ImageDirectory,
		limit:         limit,
		interval:      interval,
		scans:         make([]dto.BufferedScan, 0, limit),
		logger:        logger,
		scanRepo:      scanRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes the buffer on every tick until ctx is done, then flushes
// once more so nothing buffered is lost on shutdown.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushScans()
		case <-ctx.Done():
			s.FlushScans()
			return
		}
	}
}

// AddScan appends a scan to the in-memory buffer. A full buffer is flushed
// immediately.
func (s *BufferService) AddScan(scan dto.BufferedScan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, scan)
	s.logger.Debug("Buffer size: %d/%d", len(s.scans), s.limit)

	if len(s.scans) >= s.limit {
		s.flushLocked()
	}
}

// Pending returns the number of buffered scans.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

// FlushScans writes buffered scans to disk and database and resets the buffer.
// Scans that fail to persist are dropped, not retried.
func (s *BufferService) FlushScans() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *BufferService) flushLocked() {
	if len(s.scans) == 0 {
		return
	}
	defer s.reset()

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory, dropping %d buffered scans: %v", len(s.scans), err)
		return
	}

	savedCount := 0
	for _, scan := range s.scans {
		filename := scan.ID + ".jpg"
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, scan.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			continue
		}

		dbScan := &model.Scan{
			ID:        scan.ID,
			Source:    scan.Source,
			Filename:  filename,
			State:     scan.State,
			Annotated: scan.Annotated,
			Timestamp: scan.Timestamp,
			FilePath:  fullpath,
			FileSize:  int64(len(scan.Data)),
		}

		if err := s.scanRepo.Insert(dbScan); err != nil {
			s.logger.Error("Error saving scan to database %s: %v", scan.ID, err)
			continue
		}

		if len(scan.Detections) > 0 {
			if err := s.detectionRepo.InsertBatch(scan.Detections); err != nil {
				s.logger.Error("Error saving detections to database: %v", err)
			}
		}

		savedCount++
	}

	if dropped := len(s.scans) - savedCount; dropped > 0 {
		s.logger.Warning("Dropped %d scans that could not be saved", dropped)
	}
	s.logger.Info("Flushed %d scans to disk", savedCount)
}

// reset empties the buffer and releases the image bytes it held.
func (s *BufferService) reset() {
	clear(s.scans)
	s.scans = s.scans[:0]
}
