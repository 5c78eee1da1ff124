package dto

import (
	"time"

	"scan-prediction-service/internal/core/services"
)

type PatientResponse struct {
	ID          int64  `json:"id"`
	ExternalRef string `json:"external_ref"`
	CreatedAt   string `json:"created_at"`
}

// PatientWithPredictions is the patient view with one page of its history.
type PatientWithPredictions struct {
	PatientResponse
	Predictions []PredictionResponse `json:"predictions"`
	Total       int                  `json:"total"`
	PageSize    int                  `json:"page_size"`
	NextOffset  int                  `json:"next_offset"`
}

func ToPatientWithPredictions(h *services.PatientHistory, limit, offset int) PatientWithPredictions {
	preds := make([]PredictionResponse, 0, len(h.Predictions))
	for _, p := range h.Predictions {
		preds = append(preds, ToPredictionResponse(p))
	}
	return PatientWithPredictions{
		PatientResponse: PatientResponse{
			ID:          h.Patient.ID,
			ExternalRef: h.Patient.ExternalRef,
			CreatedAt:   h.Patient.CreatedAt.Format(time.RFC3339),
		},
		Predictions: preds,
		Total:       h.Total,
		PageSize:    limit,
		NextOffset:  offset + len(preds),
	}
}
