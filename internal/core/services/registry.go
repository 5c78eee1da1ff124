package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/core/domain"
	ports "scan-prediction-service/internal/core/ports/output"
)

// ModelRegistryService manages registered model versions and their runtime handles.
type ModelRegistryService struct {
	repo    ports.RegisteredModelRepository
	runtime *ModelRuntime
}

func NewModelRegistryService(repo ports.RegisteredModelRepository, runtime *ModelRuntime) *ModelRegistryService {
	return &ModelRegistryService{repo: repo, runtime: runtime}
}

type RegisterModelRequest struct {
	Name                   string
	Version                string
	Architecture           domain.Architecture
	SupportsBinary         bool
	SupportsStage          bool
	SupportsExplainability bool
	ExplainabilityMethod   domain.ExplainabilityMethod
}

func (s *ModelRegistryService) List(ctx context.Context) ([]*domain.RegisteredModel, error) {
	return s.repo.List(ctx)
}

func (s *ModelRegistryService) Get(ctx context.Context, id int64) (*domain.RegisteredModel, error) {
	return s.repo.GetByID(ctx, id)
}

// Register adds a model version. The newest version of an architecture
// becomes active and is picked up by the next prediction.
func (s *ModelRegistryService) Register(ctx context.Context, req RegisterModelRequest) (*domain.RegisteredModel, error) {
	model := &domain.RegisteredModel{
		Name:                   strings.TrimSpace(req.Name),
		Version:                strings.TrimSpace(req.Version),
		Architecture:           req.Architecture,
		SupportsBinary:         req.SupportsBinary,
		SupportsStage:          req.SupportsStage,
		SupportsExplainability: req.SupportsExplainability,
		ExplainabilityMethod:   req.ExplainabilityMethod,
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}

	log.WithFields(log.Fields{
		"model_id":     model.ID,
		"model":        model.Name,
		"version":      model.Version,
		"architecture": model.Architecture,
	}).Info("Model version registered")

	return model, nil
}

// Reload swaps in the active model for the slot.
func (s *ModelRegistryService) Reload(ctx context.Context, slot domain.ModelSlot) (*domain.RegisteredModel, error) {
	return s.runtime.Reload(ctx, slot.Architecture())
}

func (s *ModelRegistryService) Health() []ModelStatus {
	return s.runtime.Status()
}
