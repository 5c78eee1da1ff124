package ports

import (
	"time"

	"scan-prediction-service/internal/core/domain"
)

// PipelineMetrics records prediction pipeline telemetry.
type PipelineMetrics interface {
	ObservePrediction(arch domain.Architecture, status domain.PredictionStatus, risk domain.RiskLevel, elapsed time.Duration)
	ObserveScoring(arch domain.Architecture, call string, elapsed time.Duration, err error)
	SetModelLoaded(arch domain.Architecture, loaded bool)
	AddArtifactsSwept(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObservePrediction(domain.Architecture, domain.PredictionStatus, domain.RiskLevel, time.Duration) {}

func (NopMetrics) ObserveScoring(domain.Architecture, string, time.Duration, error) {}

func (NopMetrics) SetModelLoaded(domain.Architecture, bool) {}

func (NopMetrics) AddArtifactsSwept(int) {}
