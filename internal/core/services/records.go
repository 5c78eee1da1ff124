package services

import (
	"context"
	"fmt"

	"scan-prediction-service/internal/core/domain"
	ports "scan-prediction-service/internal/core/ports/output"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RecordService serves read access to predictions, patients and the audit trail.
type RecordService struct {
	patients    ports.PatientRepository
	predictions ports.PredictionRepository
	artifacts   ports.ArtifactRepository
	audit       ports.AuditRepository
}

func NewRecordService(store ports.Store) *RecordService {
	return &RecordService{
		patients:    store.Patients,
		predictions: store.Predictions,
		artifacts:   store.Artifacts,
		audit:       store.Audit,
	}
}

type PredictionDetail struct {
	Prediction *domain.Prediction
	Artifacts  []*domain.ExplainabilityArtifact
}

type PatientHistory struct {
	Patient     *domain.Patient
	Predictions []*domain.Prediction
	Total       int
}

func (s *RecordService) GetPrediction(ctx context.Context, id int64) (*PredictionDetail, error) {
	pred, err := s.predictions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.artifacts.ListByPrediction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	return &PredictionDetail{Prediction: pred, Artifacts: artifacts}, nil
}

func (s *RecordService) PatientPredictions(ctx context.Context, externalRef string, filter ports.ListFilter) (*PatientHistory, error) {
	ref, err := domain.NormalizeExternalRef(externalRef)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByExternalRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	preds, total, err := s.predictions.ListByPatient(ctx, patient.ID, paginate(filter))
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}

	return &PatientHistory{Patient: patient, Predictions: preds, Total: total}, nil
}

func (s *RecordService) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return s.predictions.Statistics(ctx)
}

func (s *RecordService) AuditEvents(ctx context.Context, filter ports.AuditListFilter) ([]*domain.AuditEvent, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, domain.ErrInvalidEventKind
	}
	page := paginate(ports.ListFilter{Limit: filter.Limit, Offset: filter.Offset})
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.audit.List(ctx, filter)
}

func paginate(filter ports.ListFilter) ports.ListFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
