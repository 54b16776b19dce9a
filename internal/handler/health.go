package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status  string    `json:"status"`
	ModelID string    `json:"modelId"`
	History bool      `json:"history"`
	Time    time.Time `json:"time"`
}

// HealthHandler reports liveness and the configured model.
func HealthHandler(modelID string, historyEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			ModelID: modelID,
			History: historyEnabled,
			Time:    time.Now(),
		})
	}
}
