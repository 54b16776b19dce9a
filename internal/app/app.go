package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/knowledge"
	"pillscout/internal/logger"
	"pillscout/internal/repository/sqlite"
	"pillscout/internal/route"
	"pillscout/internal/service/analysis"
	"pillscout/internal/service/detection"
	"pillscout/internal/service/storage"
	"pillscout/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	analysis      *analysis.Service
	server        *http.Server
}

// NewApp loads configuration and wires every service. It fails before
// anything listens when the configuration is incomplete.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)
	kb := knowledge.Default()
	detector := detection.NewClient(cfg, log)
	hub := websocket.NewHubService(log)

	a := &App{
		config:     cfg,
		logger:     log,
		hubService: hub,
	}

	deps := route.Dependencies{
		Config:    cfg,
		Logger:    log,
		Knowledge: kb,
		ModelID:   detector.ModelID(),
		Hub:       hub,
	}

	if cfg.HistoryEnabled {
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		scanRepo := sqlite.NewScanRepository(db)
		detectionRepo := sqlite.NewDetectionRepository(db)

		a.db = db
		a.bufferService = storage.NewBufferService(cfg, log, scanRepo, detectionRepo)
		deps.ScanRepo = scanRepo
		deps.DetectionRepo = detectionRepo
	}

	// a nil *BufferService must not become a non-nil Recorder
	var recorder analysis.Recorder
	if a.bufferService != nil {
		recorder = a.bufferService
	}
	a.analysis = analysis.NewService(cfg, detector, kb, recorder, hub, log)
	deps.Analyzer = a.analysis

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           route.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.Timeout*2 + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return a, nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully and
// flushes the history buffer.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The buffer outlives the server so scans from in-flight requests are flushed
	bufferCtx, stopBuffer := context.WithCancel(context.Background())
	defer stopBuffer()

	bufferDone := make(chan struct{})
	if a.bufferService != nil {
		go func() {
			a.bufferService.Run(bufferCtx)
			close(bufferDone)
		}()
	} else {
		close(bufferDone)
	}
	go a.hubService.Run(ctx)

	a.logger.Info("PillScout server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s (%s)", a.analysis.ModelID(), a.config.APIURL)
	a.logger.Info("Knowledge base: %d medications", a.analysis.Knowledge().Len())
	if a.config.HistoryEnabled {
		a.logger.Info("History: %s, images in %s", a.config.DBPath, a.config.ImageDirectory)
	}
	if a.config.Password == "" {
		a.logger.Warning("PASSWORD is not set, the login gate is disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		stop()
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error: %v", err)
	}

	stopBuffer()
	<-bufferDone
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}

	return serveErr
}
