package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pillscout/internal/dto"
	"pillscout/internal/service/detection"
	"pillscout/internal/service/imageprep"
)

const (
	CodeInvalidRequest   = "invalid_request"
	CodeInvalidImage     = "invalid_image"
	CodeUnsupportedMedia = "unsupported_media_type"
	CodePayloadTooLarge  = "payload_too_large"
	CodeDetectionFailed  = "detection_failed"
	CodeInternal         = "internal_error"
	CodeNotFound         = "not_found"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, dto.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// classifyError maps an analysis error onto an HTTP status and an error body.
func classifyError(err error) (int, dto.ErrorResponse) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, dto.ErrorResponse{Code: CodePayloadTooLarge, Message: "Image is too large"}
	case errors.Is(err, imageprep.ErrEmptyImage):
		return http.StatusBadRequest, dto.ErrorResponse{Code: CodeInvalidRequest, Message: "No image provided"}
	case errors.Is(err, imageprep.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, dto.ErrorResponse{Code: CodeUnsupportedMedia, Message: "Only JPEG and PNG images are accepted"}
	case errors.Is(err, imageprep.ErrInvalidImage):
		return http.StatusBadRequest, dto.ErrorResponse{Code: CodeInvalidImage, Message: "Failed to decode image", Details: err.Error()}
	case errors.Is(err, detection.ErrDetectionFailed):
		return http.StatusBadGateway, dto.ErrorResponse{Code: CodeDetectionFailed, Message: "Detection service request failed", Details: err.Error()}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Code: CodeInternal, Message: "Internal Server Error"}
	}
}
