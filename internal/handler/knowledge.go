package handler

import (
	"net/http"

	"pillscout/internal/knowledge"
	"pillscout/internal/model"
)

type medicationsResponse struct {
	Count       int                      `json:"count"`
	Medications []model.MedicationRecord `json:"medications"`
}

// MedicationsHandler lists the knowledge base in its match order.
func MedicationsHandler(kb *knowledge.Base) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := kb.Records()
		writeJSON(w, http.StatusOK, medicationsResponse{
			Count:       len(records),
			Medications: records,
		})
	}
}
