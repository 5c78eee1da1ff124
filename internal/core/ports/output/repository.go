package ports

import (
	"context"
	"time"

	"scan-prediction-service/internal/core/domain"
)

type ListFilter struct {
	Limit  int
	Offset int
}

type AuditListFilter struct {
	Kind   domain.AuditEventKind
	Limit  int
	Offset int
}

type PatientRepository interface {
	// GetOrCreate is idempotent: concurrent calls with the same ref yield one row.
	GetOrCreate(ctx context.Context, externalRef string) (*domain.Patient, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.Patient, error)
	GetByID(ctx context.Context, id int64) (*domain.Patient, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Patient, int, error)
}

type RegisteredModelRepository interface {
	Create(ctx context.Context, model *domain.RegisteredModel) error
	GetByID(ctx context.Context, id int64) (*domain.RegisteredModel, error)
	GetByNameVersion(ctx context.Context, name, version string) (*domain.RegisteredModel, error)
	// GetActive returns the newest model of the architecture, ties broken by highest id.
	GetActive(ctx context.Context, arch domain.Architecture) (*domain.RegisteredModel, error)
	List(ctx context.Context) ([]*domain.RegisteredModel, error)
}

// PredictionWrite is everything one pipeline run persists. The store writes it
// atomically, fills in generated ids and points prediction-scoped events and
// the artifact at the new prediction row.
type PredictionWrite struct {
	Prediction *domain.Prediction
	Artifact   *domain.ExplainabilityArtifact
	Events     []*domain.AuditEvent
}

type PredictionRepository interface {
	Create(ctx context.Context, w *PredictionWrite) error
	GetByID(ctx context.Context, id int64) (*domain.Prediction, error)
	ListByPatient(ctx context.Context, patientID int64, filter ListFilter) ([]*domain.Prediction, int, error)
	Statistics(ctx context.Context) (*domain.Statistics, error)
}

type ArtifactRepository interface {
	Create(ctx context.Context, artifact *domain.ExplainabilityArtifact) error
	ListByPrediction(ctx context.Context, predictionID int64) ([]*domain.ExplainabilityArtifact, error)
	// DeleteExpired removes rows with expires_at strictly before now and returns them.
	DeleteExpired(ctx context.Context, now time.Time) ([]*domain.ExplainabilityArtifact, error)
}

type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, filter AuditListFilter) ([]*domain.AuditEvent, int, error)
}

// Store bundles the repositories of one record store backend.
type Store struct {
	Patients    PatientRepository
	Models      RegisteredModelRepository
	Predictions PredictionRepository
	Artifacts   ArtifactRepository
	Audit       AuditRepository
}
