package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"pillscout/internal/config"
	"pillscout/internal/dto"
	"pillscout/internal/logger"
	"pillscout/internal/model"
	"pillscout/internal/service/imageprep"
)

// Analyzer runs one image through detection and matching.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, source string) (*dto.AnalysisResult, error)
}

// AnalyzeHandler handles POST /api/analyze. The image is either the
// multipart field "file" or the raw request body.
func AnalyzeHandler(analyzer Analyzer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		var data []byte
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			data, err = readMultipartImage(r, cfg.MaxUploadSize)
		} else {
			data, err = io.ReadAll(r.Body)
		}
		if err != nil {
			status, body := classifyError(err)
			if status == http.StatusInternalServerError {
				status, body = http.StatusBadRequest, dto.ErrorResponse{Code: CodeInvalidRequest, Message: "Failed to read image", Details: err.Error()}
			}
			logger.Warning("Rejected upload: %v", err)
			writeJSON(w, status, body)
			return
		}

		result, err := analyzer.Analyze(r.Context(), data, model.SourceUpload)
		if err != nil {
			status, body := classifyError(err)
			if status >= http.StatusInternalServerError {
				logger.Error("Analysis failed: %v", err)
			} else {
				logger.Warning("Rejected upload: %v", err)
			}
			writeJSON(w, status, body)
			return
		}

		if err := writeJSON(w, http.StatusOK, result); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

func readMultipartImage(r *http.Request, maxSize int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return nil, imageprep.ErrEmptyImage
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
