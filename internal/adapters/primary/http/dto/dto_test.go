package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/services"
)

// ============================================================================
// Registered Model Tests
// ============================================================================

func TestToRegisterModelRequest_DefaultsBinarySupport(t *testing.T) {
	req := &RegisterModelRequest{Name: "cnn_rnn", Version: "v2", Architecture: "binary-classifier"}

	out := ToRegisterModelRequest(req)

	assert.True(t, out.SupportsBinary)
	assert.Equal(t, domain.ArchBinaryClassifier, out.Architecture)
	assert.Equal(t, domain.ExplainabilityMethod(""), out.ExplainabilityMethod)
}

func TestToRegisterModelRequest_ExplicitBinary(t *testing.T) {
	off := false
	req := &RegisterModelRequest{Name: "vit", Version: "v2", Architecture: "vision-transformer", SupportsBinary: &off, ExplainabilityMethod: "attention"}

	out := ToRegisterModelRequest(req)

	assert.False(t, out.SupportsBinary)
	assert.Equal(t, domain.ExplainAttention, out.ExplainabilityMethod)
}

func TestToModelHealthResponse(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	statuses := []services.ModelStatus{
		{Architecture: domain.ArchBinaryClassifier, Loaded: true, Model: &domain.RegisteredModel{ID: 1, Name: "cnn_rnn", Version: "v1"}, LoadedAt: &at},
		{Architecture: domain.ArchVisionTransformer},
	}

	resp := ToModelHealthResponse(statuses)

	assert.Len(t, resp.Models, 2)
	assert.Equal(t, "loaded", resp.Models[0].Status)
	assert.Equal(t, "2026-01-02T03:04:05Z", *resp.Models[0].LoadedAt)
	assert.Equal(t, "cnn_rnn", resp.Models[0].Model.Name)
	assert.Equal(t, "not_loaded", resp.Models[1].Status)
	assert.Nil(t, resp.Models[1].Model)
}

// ============================================================================
// Prediction Tests
// ============================================================================

func TestToPredictionResponse_NullableFields(t *testing.T) {
	p := &domain.Prediction{ID: 7, Status: domain.StatusModelError, RiskLevel: domain.RiskInconclusive}

	resp := ToPredictionResponse(p)

	assert.Nil(t, resp.BinaryResult)
	assert.Nil(t, resp.StageResult)
	assert.Equal(t, "MODEL_ERROR", resp.Status)
	assert.Equal(t, "INCONCLUSIVE", resp.RiskLevel)
}

func TestToPredictionWithArtifacts(t *testing.T) {
	binary := domain.BinaryMalignant
	conf := 0.9
	detail := &services.PredictionDetail{
		Prediction: &domain.Prediction{ID: 3, BinaryResult: &binary, BinaryConfidence: &conf, RiskLevel: domain.RiskHigh},
		Artifacts: []*domain.ExplainabilityArtifact{
			{ID: 1, PredictionID: 3, Kind: domain.ExplainGradient, Ref: "explainability/gradient/a.png"},
		},
	}

	view := ToPredictionWithArtifacts(detail)

	assert.Equal(t, int64(3), view.ID)
	assert.Equal(t, "MALIGNANT", *view.BinaryResult)
	assert.Len(t, view.Artifacts, 1)
	assert.Equal(t, "gradient", view.Artifacts[0].Kind)
}

func TestToPatientWithPredictions_NextOffset(t *testing.T) {
	history := &services.PatientHistory{
		Patient:     &domain.Patient{ID: 1, ExternalRef: "DS-1"},
		Predictions: []*domain.Prediction{{ID: 2}, {ID: 1}},
		Total:       5,
	}

	view := ToPatientWithPredictions(history, 2, 2)

	assert.Equal(t, "DS-1", view.ExternalRef)
	assert.Equal(t, 4, view.NextOffset)
	assert.Equal(t, 5, view.Total)
}
