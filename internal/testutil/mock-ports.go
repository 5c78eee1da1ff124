package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

// MockScorer is a mock of Scorer.
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) ScoreBinary(ctx context.Context, tensor *domain.Tensor) (float64, error) {
	args := m.Called(ctx, tensor)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockScorer) ScoreStage(ctx context.Context, tensor *domain.Tensor) (domain.StageScore, error) {
	args := m.Called(ctx, tensor)
	return args.Get(0).(domain.StageScore), args.Error(1)
}

// MockModelLoader is a mock of ModelLoader.
type MockModelLoader struct {
	mock.Mock
}

func (m *MockModelLoader) Load(ctx context.Context, model *domain.RegisteredModel) (ports.Scorer, error) {
	args := m.Called(ctx, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Scorer), args.Error(1)
}

// MockPreprocessor is a mock of Preprocessor.
type MockPreprocessor struct {
	mock.Mock
}

func (m *MockPreprocessor) Validate(image []byte) error {
	args := m.Called(image)
	return args.Error(0)
}

func (m *MockPreprocessor) Preprocess(image []byte) (*domain.Tensor, error) {
	args := m.Called(image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tensor), args.Error(1)
}

// MockExplainer is a mock of Explainer.
type MockExplainer struct {
	mock.Mock
}

func (m *MockExplainer) Generate(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor, method domain.ExplainabilityMethod) (string, error) {
	args := m.Called(ctx, model, tensor, method)
	return args.String(0), args.Error(1)
}

// MockArtifactStore is a mock of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Put(ctx context.Context, ref, contentType string, data []byte) error {
	args := m.Called(ctx, ref, contentType, data)
	return args.Error(0)
}

func (m *MockArtifactStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

// MockLocker is a mock of Locker.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, func(context.Context) error, error) {
	args := m.Called(ctx, key, ttl)
	release, _ := args.Get(1).(func(context.Context) error)
	return args.Bool(0), release, args.Error(2)
}
