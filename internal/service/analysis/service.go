package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/knowledge"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/service/detection"
	"pillscout/internal/service/imageprep"

	"github.com/google/uuid"
)

const (
	MsgNoPills         = "No pills detected. Please try moving closer."
	MsgRenderFallback  = "Annotated image is unavailable, showing the original photo."
	msgUnknownTemplate = "Detected %s, but details are missing from the database."
)

// Detector is the remote detection call.
type Detector interface {
	Detect(ctx context.Context, image []byte, opts detection.Options) (*detection.Result, error)
	ModelID() string
}

// Recorder receives finished scans for persistence.
type Recorder interface {
	AddScan(scan dto.BufferedScan)
}

// Publisher pushes scan summaries to live viewers.
type Publisher interface {
	Broadcast(message []byte)
}

// Service runs the pill analysis pipeline: prepare, detect, dedupe, match.
type Service struct {
	detector     Detector
	knowledge    *knowledge.Base
	options      detection.Options
	dedupe       func([]model.Detection) []model.Detection
	maxDimension int
	maxPixels    int
	recorder     Recorder
	publisher    Publisher
	logger       *logger.Logger
}

// NewService wires the pipeline. recorder and publisher may be nil.
func NewService(cfg *config.Config, detector Detector, kb *knowledge.Base, recorder Recorder, publisher Publisher, logger *logger.Logger) *Service {
	dedupe := Dedupe
	if cfg.Dedupe == config.DedupeHighest {
		dedupe = DedupeHighestConfidence
	}

	return &Service{
		detector:  detector,
		knowledge: kb,
		options: detection.Options{
			Confidence: cfg.Confidence,
			Overlap:    cfg.Overlap,
			Stroke:     cfg.Stroke,
			Annotate:   cfg.Annotate,
		},
		dedupe:       dedupe,
		maxDimension: cfg.MaxImageDimension,
		maxPixels:    cfg.MaxImagePixels,
		recorder:     recorder,
		publisher:    publisher,
		logger:       logger,
	}
}

// Knowledge returns the medication table used for matching.
func (s *Service) Knowledge() *knowledge.Base {
	return s.knowledge
}

// ModelID returns the remote model identifier.
func (s *Service) ModelID() string {
	return s.detector.ModelID()
}

// Analyze runs one image through the pipeline. Errors are either image
// preparation errors (bad input) or detection errors (remote failure).
// An image with no detections is a successful, empty result.
func (s *Service) Analyze(ctx context.Context, image []byte, source string) (*dto.AnalysisResult, error) {
	start := time.Now()

	prepared, err := imageprep.Prepare(image, s.maxDimension, s.maxPixels)
	if err != nil {
		return nil, err
	}

	detected, err := s.detector.Detect(ctx, prepared.Data, s.options)
	if err != nil {
		s.logger.Error("Detection failed for %s image: %v", source, err)
		return nil, err
	}

	unique := s.dedupe(detected.Detections)

	result := &dto.AnalysisResult{
		ScanID:     uuid.NewString(),
		Source:     source,
		ModelID:    s.detector.ModelID(),
		Timestamp:  start,
		Detections: detected.Detections,
		Cards:      s.buildCards(unique),
		Annotated:  detected.Annotated,
		Fallback:   detected.Fallback,
	}

	if len(unique) == 0 {
		result.State = model.StateEmpty
		result.Message = MsgNoPills
	} else {
		result.State = model.StateDetected
		result.Message = fmt.Sprintf("Found %d pill type(s)", len(unique))
	}

	if detected.Fallback {
		result.Warning = MsgRenderFallback
	}

	result.ImageData = detected.AnnotatedImage
	if result.ImageData == nil {
		result.ImageData = prepared.Data
	}
	result.Image = dataURL(result.ImageData)

	s.logger.Info("Scan %s (%s): %d detection(s), %d unique, state=%s, took %v",
		result.ScanID, source, len(detected.Detections), len(unique), result.State, time.Since(start))

	s.record(result)
	s.publish(result)

	return result, nil
}

func (s *Service) buildCards(unique []model.Detection) []dto.MedicationCard {
	cards := make([]dto.MedicationCard, 0, len(unique))
	for _, det := range unique {
		card := dto.MedicationCard{
			Class:      det.Class,
			Confidence: det.Confidence,
		}
		if rec, ok := s.knowledge.Match(det.Class); ok {
			card.Known = true
			card.Record = &rec
		} else {
			card.Message = fmt.Sprintf(msgUnknownTemplate, det.Class)
			s.logger.Warning("Detected class %q has no knowledge base entry", det.Class)
		}
		cards = append(cards, card)
	}
	return cards
}

func (s *Service) record(result *dto.AnalysisResult) {
	if s.recorder == nil {
		return
	}

	detections := make([]model.ScanDetection, 0, len(result.Cards))
	byClass := make(map[string]model.Detection, len(result.Detections))
	for _, det := range s.dedupe(result.Detections) {
		byClass[det.Class] = det
	}
	for _, card := range result.Cards {
		det := byClass[card.Class]
		sd := model.ScanDetection{
			ScanID:     result.ScanID,
			Class:      card.Class,
			Confidence: card.Confidence,
			X:          det.X,
			Y:          det.Y,
			Width:      det.Width,
			Height:     det.Height,
		}
		if card.Record != nil {
			sd.MatchedKey = card.Record.Key
		}
		detections = append(detections, sd)
	}

	s.recorder.AddScan(dto.BufferedScan{
		ID:         result.ScanID,
		Source:     result.Source,
		State:      result.State,
		Annotated:  result.Annotated,
		Timestamp:  result.Timestamp,
		Detections: detections,
		Data:       result.ImageData,
	})
}

func (s *Service) publish(result *dto.AnalysisResult) {
	if s.publisher == nil {
		return
	}

	summary := dto.ScanSummary{
		Type:      "scan",
		ScanID:    result.ScanID,
		Source:    result.Source,
		State:     result.State,
		Timestamp: result.Timestamp,
		Classes:   make([]string, 0, len(result.Cards)),
		Known:     make([]string, 0, len(result.Cards)),
	}
	for _, card := range result.Cards {
		summary.Classes = append(summary.Classes, card.Class)
		if card.Known {
			summary.Known = append(summary.Known, card.Record.Name)
		}
	}

	msg, err := json.Marshal(summary)
	if err != nil {
		s.logger.Error("Failed to encode scan summary: %v", err)
		return
	}
	s.publisher.Broadcast(msg)
}

func dataURL(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
