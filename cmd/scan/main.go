package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/knowledge"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/repository/sqlite"
	"pillscout/internal/service/analysis"
	"pillscout/internal/service/detection"
	"pillscout/internal/service/storage"
)

type options struct {
	imagePath string
	save      bool
	dbPath    string
	asJSON    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.imagePath, "image", "", "JPEG or PNG photo to analyze")
	flag.BoolVar(&opts.save, "save", false, "Record the scan in the history database")
	flag.StringVar(&opts.dbPath, "db", "", "History database path (defaults to DB_PATH)")
	flag.BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")
	flag.Parse()

	if opts.imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

// run does the work of main so deferred cleanup happens before exit.
func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	console := logger.NewConsole(os.Stderr, cfg.LogLevel)

	data, err := os.ReadFile(opts.imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	var recorder analysis.Recorder
	var buffer *storage.BufferService
	var scanRepo *sqlite.ScanRepository
	if opts.save {
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		scanRepo = sqlite.NewScanRepository(db)
		buffer = storage.NewBufferService(cfg, console, scanRepo, sqlite.NewDetectionRepository(db))
		recorder = buffer
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := analysis.NewService(cfg, detection.NewClient(cfg, console), knowledge.Default(), recorder, nil, console)
	result, err := svc.Analyze(ctx, data, model.SourceCLI)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if buffer != nil {
		buffer.FlushScans()
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printResult(result)
	}

	if scanRepo != nil {
		printStats(scanRepo)
	}
	return nil
}

func printResult(result *dto.AnalysisResult) {
	fmt.Printf("Scan %s (model %s)\n", result.ScanID, result.ModelID)
	fmt.Println(result.Message)
	if result.Warning != "" {
		fmt.Printf("Warning: %s\n", result.Warning)
	}

	for _, card := range result.Cards {
		fmt.Println()
		if !card.Known {
			fmt.Printf("? %s (%.0f%%)\n  %s\n", card.Class, card.Confidence*100, card.Message)
			continue
		}
		rec := card.Record
		fmt.Printf("* %s [%s] (%.0f%%)\n", rec.Name, rec.Category, card.Confidence*100)
		fmt.Printf("  %s\n", rec.Description)
		fmt.Printf("  When: %s\n", rec.Timing)
		fmt.Printf("  Advice: %s\n", rec.Advice)
	}
}

func printStats(repo *sqlite.ScanRepository) {
	stats, err := repo.GetStats()
	if err != nil {
		log.Printf("Failed to read history stats: %v", err)
		return
	}

	fmt.Printf("\nHistory:\n")
	fmt.Printf("   Total scans: %d (%d empty)\n", stats.TotalScans, stats.EmptyScans)
	fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
	for source, count := range stats.PerSource {
		fmt.Printf("      - %s: %d scans\n", source, count)
	}
}
