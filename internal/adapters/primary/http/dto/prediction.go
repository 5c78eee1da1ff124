package dto

import (
	"time"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/services"
)

type PredictionResponse struct {
	ID               int64    `json:"id"`
	PatientID        int64    `json:"patient_id"`
	ModelID          int64    `json:"model_id"`
	Status           string   `json:"status"`
	BinaryResult     *string  `json:"binary_result"`
	BinaryConfidence *float64 `json:"binary_confidence"`
	StageResult      *string  `json:"stage_result"`
	StageConfidence  *float64 `json:"stage_confidence"`
	RiskLevel        string   `json:"risk_level"`
	InferenceTimeMs  int64    `json:"inference_time_ms"`
	CreatedAt        string   `json:"created_at"`
}

func ToPredictionResponse(p *domain.Prediction) PredictionResponse {
	resp := PredictionResponse{
		ID:               p.ID,
		PatientID:        p.PatientID,
		ModelID:          p.ModelID,
		Status:           string(p.Status),
		BinaryConfidence: p.BinaryConfidence,
		StageConfidence:  p.StageConfidence,
		RiskLevel:        string(p.RiskLevel),
		InferenceTimeMs:  p.InferenceTimeMs,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
	}
	if p.BinaryResult != nil {
		v := string(*p.BinaryResult)
		resp.BinaryResult = &v
	}
	if p.StageResult != nil {
		v := string(*p.StageResult)
		resp.StageResult = &v
	}
	return resp
}

// CreatePredictionResponse is the body of POST /predictions. Error is set
// when scoring failed and the record was persisted as MODEL_ERROR.
type CreatePredictionResponse struct {
	Prediction        PredictionResponse `json:"prediction"`
	ExplainabilityRef *string            `json:"explainability_ref"`
	Error             string             `json:"error,omitempty"`
}

func ToCreatePredictionResponse(r *services.PredictionResult, err error) CreatePredictionResponse {
	resp := CreatePredictionResponse{
		Prediction:        ToPredictionResponse(r.Prediction),
		ExplainabilityRef: r.ExplainabilityRef,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

type ArtifactResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Ref       string `json:"ref"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

func ToArtifactResponse(a *domain.ExplainabilityArtifact) ArtifactResponse {
	return ArtifactResponse{
		ID:        a.ID,
		Kind:      string(a.Kind),
		Ref:       a.Ref,
		ExpiresAt: a.ExpiresAt.Format(time.RFC3339),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// PredictionWithArtifacts is the prediction view with its artifacts inlined.
type PredictionWithArtifacts struct {
	PredictionResponse
	Artifacts []ArtifactResponse `json:"artifacts"`
}

func ToPredictionWithArtifacts(d *services.PredictionDetail) PredictionWithArtifacts {
	artifacts := make([]ArtifactResponse, 0, len(d.Artifacts))
	for _, a := range d.Artifacts {
		artifacts = append(artifacts, ToArtifactResponse(a))
	}
	return PredictionWithArtifacts{
		PredictionResponse: ToPredictionResponse(d.Prediction),
		Artifacts:          artifacts,
	}
}
