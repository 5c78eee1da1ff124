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

func TestModelRegistryService_Register(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelRegistryService(repo, nil)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.RegisteredModel")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.RegisteredModel).ID = 9 }).
		Return(nil)

	model, err := svc.Register(context.Background(), RegisterModelRequest{
		Name:           " cnn_rnn ",
		Version:        "v2",
		Architecture:   domain.ArchBinaryClassifier,
		SupportsBinary: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), model.ID)
	assert.Equal(t, "cnn_rnn", model.Name)
	assert.Equal(t, domain.ExplainNone, model.ExplainabilityMethod)
}

func TestModelRegistryService_Register_Invalid(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelRegistryService(repo, nil)

	_, err := svc.Register(context.Background(), RegisterModelRequest{Name: "", Version: "v1", Architecture: domain.ArchBinaryClassifier})
	assert.ErrorIs(t, err, domain.ErrInvalidModelName)

	_, err = svc.Register(context.Background(), RegisterModelRequest{Name: "m", Version: "v1", Architecture: "resnet"})
	assert.ErrorIs(t, err, domain.ErrInvalidArch)

	_, err = svc.Register(context.Background(), RegisterModelRequest{
		Name: "m", Version: "v1", Architecture: domain.ArchVisionTransformer, ExplainabilityMethod: "lime",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestModelRegistryService_Register_Conflict(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelRegistryService(repo, nil)

	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrModelNameConflict)

	_, err := svc.Register(context.Background(), RegisterModelRequest{Name: "vit", Version: "v1", Architecture: domain.ArchVisionTransformer})
	assert.ErrorIs(t, err, domain.ErrModelNameConflict)
}

func TestModelRegistryService_ReloadUsesSlotArchitecture(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	loader := new(testutil.MockModelLoader)
	audit := new(testutil.MockAuditRepo)
	model := vitModel()

	repo.On("GetActive", mock.Anything, domain.ArchVisionTransformer).Return(model, nil)
	loader.On("Load", mock.Anything, model).Return(new(testutil.MockScorer), nil)
	audit.On("Append", mock.Anything, mock.Anything).Return(nil)

	rt := NewModelRuntime(repo, audit, map[domain.Architecture]ports.ModelLoader{
		domain.ArchVisionTransformer: loader,
	}, nil)
	svc := NewModelRegistryService(repo, rt)

	got, err := svc.Reload(context.Background(), domain.SlotSecondary)
	require.NoError(t, err)
	assert.Equal(t, model, got)

	health := svc.Health()
	assert.False(t, health[0].Loaded)
	assert.True(t, health[1].Loaded)
}
