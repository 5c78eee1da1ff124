package ports

import (
	"context"
	"time"

	"scan-prediction-service/internal/core/domain"
)

// Scorer is a loaded scoring handle. Implementations must be safe for
// concurrent use; the runtime shares one handle across requests.
type Scorer interface {
	// ScoreBinary returns the malignancy probability in [0, 1].
	ScoreBinary(ctx context.Context, tensor *domain.Tensor) (float64, error)
	ScoreStage(ctx context.Context, tensor *domain.Tensor) (domain.StageScore, error)
}

// ModelLoader produces scorers for one architecture.
type ModelLoader interface {
	Load(ctx context.Context, model *domain.RegisteredModel) (Scorer, error)
}

type Preprocessor interface {
	// Validate checks the payload is a decodable, supported image.
	Validate(image []byte) error
	Preprocess(image []byte) (*domain.Tensor, error)
}

// Explainer produces a visual explanation and returns its artifact reference.
type Explainer interface {
	Generate(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor, method domain.ExplainabilityMethod) (string, error)
}

// ArtifactStore holds explanation blobs addressed by their reference.
type ArtifactStore interface {
	Put(ctx context.Context, ref, contentType string, data []byte) error
	// Delete is a no-op for refs that do not exist.
	Delete(ctx context.Context, ref string) error
}

// Locker grants a short-lived lock shared between replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (acquired bool, release func(context.Context) error, err error)
}
