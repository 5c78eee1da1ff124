package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/testutil"
)

type recordMocks struct {
	patients    *testutil.MockPatientRepo
	predictions *testutil.MockPredictionRepo
	artifacts   *testutil.MockArtifactRepo
	audit       *testutil.MockAuditRepo
}

func newRecordService() (*RecordService, recordMocks) {
	m := recordMocks{
		patients:    new(testutil.MockPatientRepo),
		predictions: new(testutil.MockPredictionRepo),
		artifacts:   new(testutil.MockArtifactRepo),
		audit:       new(testutil.MockAuditRepo),
	}
	svc := NewRecordService(ports.Store{
		Patients:    m.patients,
		Predictions: m.predictions,
		Artifacts:   m.artifacts,
		Audit:       m.audit,
	})
	return svc, m
}

func TestRecordService_GetPrediction(t *testing.T) {
	svc, m := newRecordService()
	pred := &domain.Prediction{ID: 5, RiskLevel: domain.RiskLow}
	artifacts := []*domain.ExplainabilityArtifact{{ID: 1, PredictionID: 5, Ref: "explainability/gradient/x.png"}}

	m.predictions.On("GetByID", mock.Anything, int64(5)).Return(pred, nil)
	m.artifacts.On("ListByPrediction", mock.Anything, int64(5)).Return(artifacts, nil)

	detail, err := svc.GetPrediction(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, pred, detail.Prediction)
	assert.Len(t, detail.Artifacts, 1)
}

func TestRecordService_GetPrediction_NotFound(t *testing.T) {
	svc, m := newRecordService()
	m.predictions.On("GetByID", mock.Anything, int64(9)).Return(nil, domain.ErrPredictionNotFound)

	_, err := svc.GetPrediction(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrPredictionNotFound)
	m.artifacts.AssertNotCalled(t, "ListByPrediction", mock.Anything, mock.Anything)
}

func TestRecordService_PatientPredictions_DefaultPage(t *testing.T) {
	svc, m := newRecordService()
	patient := &domain.Patient{ID: 3, ExternalRef: "DS-3"}
	preds := []*domain.Prediction{{ID: 1, PatientID: 3}, {ID: 2, PatientID: 3}}

	m.patients.On("GetByExternalRef", mock.Anything, "DS-3").Return(patient, nil)
	m.predictions.On("ListByPatient", mock.Anything, int64(3), ports.ListFilter{Limit: 20}).Return(preds, 2, nil)

	history, err := svc.PatientPredictions(context.Background(), "DS-3", ports.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, patient, history.Patient)
	assert.Equal(t, 2, history.Total)
	assert.Len(t, history.Predictions, 2)
}

func TestRecordService_PatientPredictions_CapsLimit(t *testing.T) {
	svc, m := newRecordService()
	m.patients.On("GetByExternalRef", mock.Anything, "DS-3").Return(&domain.Patient{ID: 3}, nil)
	m.predictions.On("ListByPatient", mock.Anything, int64(3), ports.ListFilter{Limit: 100, Offset: 40}).
		Return([]*domain.Prediction{}, 0, nil)

	_, err := svc.PatientPredictions(context.Background(), "DS-3", ports.ListFilter{Limit: 1000, Offset: 40})
	require.NoError(t, err)
	m.predictions.AssertExpectations(t)
}

func TestRecordService_PatientPredictions_UnknownPatient(t *testing.T) {
	svc, m := newRecordService()
	m.patients.On("GetByExternalRef", mock.Anything, "nobody").Return(nil, domain.ErrPatientNotFound)

	_, err := svc.PatientPredictions(context.Background(), "nobody", ports.ListFilter{})
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
}

func TestRecordService_Statistics(t *testing.T) {
	svc, m := newRecordService()
	stats := domain.NewStatistics()
	stats.Total = 3
	stats.ByRiskLevel[domain.RiskHigh] = 3
	stats.ByStatus[domain.StatusSuccess] = 3
	m.predictions.On("Statistics", mock.Anything).Return(stats, nil)

	got, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 0, got.ByRiskLevel[domain.RiskLow])
}

func TestRecordService_AuditEvents(t *testing.T) {
	svc, m := newRecordService()
	events := []*domain.AuditEvent{domain.NewModelEvent(domain.AuditModelLoaded, 1, "Model cnn_rnn v1 loaded")}
	m.audit.On("List", mock.Anything, ports.AuditListFilter{Kind: domain.AuditModelLoaded, Limit: 20}).Return(events, 1, nil)

	got, total, err := svc.AuditEvents(context.Background(), ports.AuditListFilter{Kind: domain.AuditModelLoaded})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, got, 1)
}

func TestRecordService_AuditEvents_InvalidKind(t *testing.T) {
	svc, m := newRecordService()

	_, _, err := svc.AuditEvents(context.Background(), ports.AuditListFilter{Kind: "DELETED"})
	assert.ErrorIs(t, err, domain.ErrInvalidEventKind)
	m.audit.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
