// Package memory is an in-process record store for local runs and tests.
// It enforces the same invariants as the postgres store: unique patient refs
// and model versions, append-only predictions and audit events, and sanitized
// audit messages.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/core/privacy"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	patients    []*domain.Patient
	patientRefs map[string]*domain.Patient
	models      []*domain.RegisteredModel
	predictions []*domain.Prediction
	artifacts   []*domain.ExplainabilityArtifact
	artifactSeq int64
	events      []*domain.AuditEvent
}

func New() *Store {
	return &Store{
		now:         time.Now,
		patientRefs: make(map[string]*domain.Patient),
	}
}

// Ports exposes the store through the repository interfaces.
func (s *Store) Ports() ports.Store {
	return ports.Store{
		Patients:    patientRepo{s},
		Models:      modelRepo{s},
		Predictions: predictionRepo{s},
		Artifacts:   artifactRepo{s},
		Audit:       auditRepo{s},
	}
}

// Seed registers the default models the way the seed migration does.
func (s *Store) Seed(ctx context.Context) error {
	defaults := []*domain.RegisteredModel{
		{Name: "cnn_rnn", Version: "v1", Architecture: domain.ArchBinaryClassifier, SupportsBinary: true, SupportsStage: true, SupportsExplainability: true, ExplainabilityMethod: domain.ExplainGradient},
		{Name: "vit", Version: "v1", Architecture: domain.ArchVisionTransformer, SupportsBinary: true, SupportsStage: true, SupportsExplainability: true, ExplainabilityMethod: domain.ExplainAttention},
	}
	repo := modelRepo{s}
	audit := auditRepo{s}
	for _, m := range defaults {
		if err := repo.Create(ctx, m); err != nil {
			if errors.Is(err, domain.ErrModelNameConflict) {
				continue
			}
			return err
		}
		ev := domain.NewModelEvent(domain.AuditModelLoaded, m.ID, "Model "+m.Name+" "+m.Version+" registered")
		if err := audit.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Patients
// ============================================================================

type patientRepo struct{ s *Store }

func (r patientRepo) GetOrCreate(_ context.Context, externalRef string) (*domain.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.patientRefs[externalRef]; ok {
		return clonePatient(p), nil
	}
	p := &domain.Patient{
		ID:          int64(len(r.s.patients) + 1),
		ExternalRef: externalRef,
		CreatedAt:   r.s.now(),
	}
	r.s.patients = append(r.s.patients, p)
	r.s.patientRefs[externalRef] = p
	return clonePatient(p), nil
}

func (r patientRepo) GetByExternalRef(_ context.Context, externalRef string) (*domain.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patientRefs[externalRef]
	if !ok {
		return nil, domain.ErrPatientNotFound
	}
	return clonePatient(p), nil
}

func (r patientRepo) GetByID(_ context.Context, id int64) (*domain.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if id < 1 || id > int64(len(r.s.patients)) {
		return nil, domain.ErrPatientNotFound
	}
	return clonePatient(r.s.patients[id-1]), nil
}

func (r patientRepo) List(_ context.Context, filter ports.ListFilter) ([]*domain.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.Patient{}
	for _, p := range page(r.s.patients, filter) {
		out = append(out, clonePatient(p))
	}
	return out, len(r.s.patients), nil
}

// ============================================================================
// Registered Models
// ============================================================================

type modelRepo struct{ s *Store }

func (r modelRepo) Create(_ context.Context, model *domain.RegisteredModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, m := range r.s.models {
		if m.Name == model.Name && m.Version == model.Version {
			return domain.ErrModelNameConflict
		}
	}
	if model.ExplainabilityMethod == "" {
		model.ExplainabilityMethod = domain.ExplainNone
	}
	model.ID = int64(len(r.s.models) + 1)
	model.CreatedAt = r.s.now()

	stored := *model
	r.s.models = append(r.s.models, &stored)
	return nil
}

func (r modelRepo) GetByID(_ context.Context, id int64) (*domain.RegisteredModel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if id < 1 || id > int64(len(r.s.models)) {
		return nil, domain.ErrModelNotFound
	}
	m := *r.s.models[id-1]
	return &m, nil
}

func (r modelRepo) GetByNameVersion(_ context.Context, name, version string) (*domain.RegisteredModel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, m := range r.s.models {
		if m.Name == name && m.Version == version {
			out := *m
			return &out, nil
		}
	}
	return nil, domain.ErrModelNotFound
}

func (r modelRepo) GetActive(_ context.Context, arch domain.Architecture) (*domain.RegisteredModel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var active *domain.RegisteredModel
	for _, m := range r.s.models {
		if m.Architecture != arch {
			continue
		}
		if active == nil || m.NewerThan(active) {
			active = m
		}
	}
	if active == nil {
		return nil, domain.ErrModelNotFound
	}
	out := *active
	return &out, nil
}

func (r modelRepo) List(_ context.Context) ([]*domain.RegisteredModel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.RegisteredModel, 0, len(r.s.models))
	for _, m := range r.s.models {
		c := *m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Architecture != out[j].Architecture {
			return out[i].Architecture < out[j].Architecture
		}
		return out[i].NewerThan(out[j])
	})
	return out, nil
}

// ============================================================================
// Predictions
// ============================================================================

type predictionRepo struct{ s *Store }

func (r predictionRepo) Create(_ context.Context, w *ports.PredictionWrite) error {
	p := w.Prediction
	if err := p.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.PatientID < 1 || p.PatientID > int64(len(r.s.patients)) {
		return domain.ErrPatientNotFound
	}
	if p.ModelID < 1 || p.ModelID > int64(len(r.s.models)) {
		return domain.ErrModelNotFound
	}
	for _, ev := range w.Events {
		if !ev.Kind.Valid() {
			return domain.ErrInvalidEventKind
		}
	}

	now := r.s.now()
	p.ID = int64(len(r.s.predictions) + 1)
	p.CreatedAt = now
	stored := *p
	r.s.predictions = append(r.s.predictions, &stored)

	if a := w.Artifact; a != nil {
		a.PredictionID = p.ID
		r.s.insertArtifact(a, now)
	}
	for _, ev := range w.Events {
		if ev.ReferencesPrediction() && ev.ReferenceID == nil {
			id := p.ID
			ev.ReferenceID = &id
		}
		r.s.appendEvent(ev, now)
	}
	return nil
}

func (r predictionRepo) GetByID(_ context.Context, id int64) (*domain.Prediction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if id < 1 || id > int64(len(r.s.predictions)) {
		return nil, domain.ErrPredictionNotFound
	}
	p := *r.s.predictions[id-1]
	return &p, nil
}

func (r predictionRepo) ListByPatient(_ context.Context, patientID int64, filter ports.ListFilter) ([]*domain.Prediction, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Prediction
	for i := len(r.s.predictions) - 1; i >= 0; i-- {
		if p := r.s.predictions[i]; p.PatientID == patientID {
			matched = append(matched, p)
		}
	}

	out := []*domain.Prediction{}
	for _, p := range page(matched, filter) {
		c := *p
		out = append(out, &c)
	}
	return out, len(matched), nil
}

func (r predictionRepo) Statistics(_ context.Context) (*domain.Statistics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.NewStatistics()
	for _, p := range r.s.predictions {
		stats.Total++
		stats.ByRiskLevel[p.RiskLevel]++
		stats.ByStatus[p.Status]++
	}
	return stats, nil
}

// ============================================================================
// Artifacts
// ============================================================================

type artifactRepo struct{ s *Store }

func (r artifactRepo) Create(_ context.Context, artifact *domain.ExplainabilityArtifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if artifact.PredictionID < 1 || artifact.PredictionID > int64(len(r.s.predictions)) {
		return domain.ErrPredictionNotFound
	}
	r.s.insertArtifact(artifact, r.s.now())
	return nil
}

func (r artifactRepo) ListByPrediction(_ context.Context, predictionID int64) ([]*domain.ExplainabilityArtifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.ExplainabilityArtifact{}
	for _, a := range r.s.artifacts {
		if a.PredictionID == predictionID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r artifactRepo) DeleteExpired(_ context.Context, now time.Time) ([]*domain.ExplainabilityArtifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.artifacts[:0]
	deleted := []*domain.ExplainabilityArtifact{}
	for _, a := range r.s.artifacts {
		if a.ExpiresAt.Before(now) {
			deleted = append(deleted, a)
			continue
		}
		kept = append(kept, a)
	}
	r.s.artifacts = kept
	return deleted, nil
}

func (s *Store) insertArtifact(a *domain.ExplainabilityArtifact, now time.Time) {
	s.artifactSeq++
	a.ID = s.artifactSeq
	a.CreatedAt = now
	if a.ExpiresAt.IsZero() {
		a.ExpiresAt = now.Add(domain.DefaultArtifactTTL)
	}
	stored := *a
	s.artifacts = append(s.artifacts, &stored)
}

// ============================================================================
// Audit Events
// ============================================================================

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, event *domain.AuditEvent) error {
	if !event.Kind.Valid() {
		return domain.ErrInvalidEventKind
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.appendEvent(event, r.s.now())
	return nil
}

func (r auditRepo) List(_ context.Context, filter ports.AuditListFilter) ([]*domain.AuditEvent, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.AuditEvent
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if ev := r.s.events[i]; filter.Kind == "" || ev.Kind == filter.Kind {
			matched = append(matched, ev)
		}
	}

	out := []*domain.AuditEvent{}
	for _, ev := range page(matched, ports.ListFilter{Limit: filter.Limit, Offset: filter.Offset}) {
		c := *ev
		out = append(out, &c)
	}
	return out, len(matched), nil
}

// appendEvent is the single audit write path; the message is sanitized
// immediately before the event is stored.
func (s *Store) appendEvent(ev *domain.AuditEvent, now time.Time) {
	privacy.SanitizeEvent(ev)
	ev.ID = int64(len(s.events) + 1)
	ev.CreatedAt = now
	stored := *ev
	s.events = append(s.events, &stored)
}

func page[T any](items []T, filter ports.ListFilter) []T {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= len(items) {
		return nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items
}

func clonePatient(p *domain.Patient) *domain.Patient {
	c := *p
	return &c
}
