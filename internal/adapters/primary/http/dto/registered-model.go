package dto

import (
	"time"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/services"
)

type RegisterModelRequest struct {
	Name                   string `json:"name" binding:"required,max=100"`
	Version                string `json:"version" binding:"required,max=50"`
	Architecture           string `json:"architecture" binding:"required"`
	SupportsBinary         *bool  `json:"supports_binary"`
	SupportsStage          bool   `json:"supports_stage"`
	SupportsExplainability bool   `json:"supports_explainability"`
	ExplainabilityMethod   string `json:"explainability_method"`
}

// ToRegisterModelRequest maps the body onto the service request; binary
// scoring defaults to supported.
func ToRegisterModelRequest(req *RegisterModelRequest) services.RegisterModelRequest {
	binary := true
	if req.SupportsBinary != nil {
		binary = *req.SupportsBinary
	}
	return services.RegisterModelRequest{
		Name:                   req.Name,
		Version:                req.Version,
		Architecture:           domain.Architecture(req.Architecture),
		SupportsBinary:         binary,
		SupportsStage:          req.SupportsStage,
		SupportsExplainability: req.SupportsExplainability,
		ExplainabilityMethod:   domain.ExplainabilityMethod(req.ExplainabilityMethod),
	}
}

type RegisteredModelResponse struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	Version                string `json:"version"`
	Architecture           string `json:"architecture"`
	SupportsBinary         bool   `json:"supports_binary"`
	SupportsStage          bool   `json:"supports_stage"`
	SupportsExplainability bool   `json:"supports_explainability"`
	ExplainabilityMethod   string `json:"explainability_method"`
	CreatedAt              string `json:"created_at"`
}

type ListRegisteredModelsResponse struct {
	Items []RegisteredModelResponse `json:"items"`
	Total int                       `json:"total"`
}

func ToRegisteredModelResponse(m *domain.RegisteredModel) RegisteredModelResponse {
	return RegisteredModelResponse{
		ID:                     m.ID,
		Name:                   m.Name,
		Version:                m.Version,
		Architecture:           string(m.Architecture),
		SupportsBinary:         m.SupportsBinary,
		SupportsStage:          m.SupportsStage,
		SupportsExplainability: m.SupportsExplainability,
		ExplainabilityMethod:   string(m.ExplainabilityMethod),
		CreatedAt:              m.CreatedAt.Format(time.RFC3339),
	}
}

type ModelStatusResponse struct {
	Architecture string                   `json:"architecture"`
	Loaded       bool                     `json:"loaded"`
	Status       string                   `json:"status"`
	Model        *RegisteredModelResponse `json:"model,omitempty"`
	LoadedAt     *string                  `json:"loaded_at,omitempty"`
}

type ModelHealthResponse struct {
	Models []ModelStatusResponse `json:"models"`
}

func ToModelHealthResponse(statuses []services.ModelStatus) ModelHealthResponse {
	out := make([]ModelStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		item := ModelStatusResponse{
			Architecture: string(s.Architecture),
			Loaded:       s.Loaded,
			Status:       "not_loaded",
		}
		if s.Loaded {
			item.Status = "loaded"
		}
		if s.Model != nil {
			m := ToRegisteredModelResponse(s.Model)
			item.Model = &m
		}
		if s.LoadedAt != nil {
			at := s.LoadedAt.Format(time.RFC3339)
			item.LoadedAt = &at
		}
		out = append(out, item)
	}
	return ModelHealthResponse{Models: out}
}
