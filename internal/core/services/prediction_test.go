package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/testutil"
)

var (
	testImage  = []byte("fake-png")
	testTensor = &domain.Tensor{Shape: []int{1, 224, 224, 1}, Data: make([]float32, 4)}
)

func cnnModel() *domain.RegisteredModel {
	return &domain.RegisteredModel{
		ID: 1, Name: "cnn_rnn", Version: "v1",
		Architecture:           domain.ArchBinaryClassifier,
		SupportsBinary:         true,
		SupportsExplainability: true,
		ExplainabilityMethod:   domain.ExplainGradient,
	}
}

func vitModel() *domain.RegisteredModel {
	return &domain.RegisteredModel{
		ID: 2, Name: "vit", Version: "v1",
		Architecture:         domain.ArchVisionTransformer,
		SupportsBinary:       true,
		SupportsStage:        true,
		ExplainabilityMethod: domain.ExplainNone,
	}
}

type pipelineFixture struct {
	patients    *testutil.MockPatientRepo
	models      *testutil.MockRegisteredModelRepo
	predictions *testutil.MockPredictionRepo
	audit       *testutil.MockAuditRepo
	loader      *testutil.MockModelLoader
	scorer      *testutil.MockScorer
	pre         *testutil.MockPreprocessor
	explainer   *testutil.MockExplainer
	svc         *PredictionService

	written *ports.PredictionWrite
}

func newPipelineFixture(timeout time.Duration) *pipelineFixture {
	f := &pipelineFixture{
		patients:    new(testutil.MockPatientRepo),
		models:      new(testutil.MockRegisteredModelRepo),
		predictions: new(testutil.MockPredictionRepo),
		audit:       new(testutil.MockAuditRepo),
		loader:      new(testutil.MockModelLoader),
		scorer:      new(testutil.MockScorer),
		pre:         new(testutil.MockPreprocessor),
		explainer:   new(testutil.MockExplainer),
	}

	f.audit.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.loader.On("Load", mock.Anything, mock.Anything).Return(f.scorer, nil).Maybe()

	runtime := NewModelRuntime(f.models, f.audit, map[domain.Architecture]ports.ModelLoader{
		domain.ArchBinaryClassifier:  f.loader,
		domain.ArchVisionTransformer: f.loader,
	}, nil)

	store := ports.Store{
		Patients:    f.patients,
		Models:      f.models,
		Predictions: f.predictions,
		Audit:       f.audit,
	}
	f.svc = NewPredictionService(store, runtime, f.pre, f.explainer, nil, PredictionConfig{InferenceTimeout: timeout})
	return f
}

// ready wires the steps up to scoring for model.
func (f *pipelineFixture) ready(model *domain.RegisteredModel) {
	f.patients.On("GetOrCreate", mock.Anything, "DS-001").Return(&domain.Patient{ID: 7, ExternalRef: "DS-001"}, nil)
	f.models.On("GetActive", mock.Anything, model.Architecture).Return(model, nil)
	f.pre.On("Validate", testImage).Return(nil)
	f.pre.On("Preprocess", testImage).Return(testTensor, nil)
}

func (f *pipelineFixture) expectPersist() {
	f.predictions.On("Create", mock.Anything, mock.AnythingOfType("*ports.PredictionWrite")).
		Run(func(args mock.Arguments) {
			w := args.Get(1).(*ports.PredictionWrite)
			w.Prediction.ID = 42
			f.written = w
		}).
		Return(nil)
}

func request(slot domain.ModelSlot) PredictionRequest {
	return PredictionRequest{ExternalRef: " DS-001 ", Slot: slot, Image: testImage}
}

func eventKinds(events []*domain.AuditEvent) []domain.AuditEventKind {
	kinds := make([]domain.AuditEventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestPredictionService_Run_MalignantHighWithArtifact(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(cnnModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.9, nil)
	f.explainer.On("Generate", mock.Anything, mock.Anything, testTensor, domain.ExplainGradient).
		Return("explainability/gradient/abc.png", nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	require.NoError(t, err)

	p := res.Prediction
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, int64(7), p.PatientID)
	assert.Equal(t, int64(1), p.ModelID)
	assert.Equal(t, domain.StatusSuccess, p.Status)
	assert.Equal(t, domain.RiskHigh, p.RiskLevel)
	assert.Equal(t, domain.BinaryMalignant, *p.BinaryResult)
	assert.InDelta(t, 0.9, *p.BinaryConfidence, 1e-9)
	assert.Nil(t, p.StageResult)

	require.NotNil(t, res.ExplainabilityRef)
	assert.Equal(t, "explainability/gradient/abc.png", *res.ExplainabilityRef)
	require.NotNil(t, f.written.Artifact)
	assert.Equal(t, domain.ExplainGradient, f.written.Artifact.Kind)
	assert.Equal(t, domain.DefaultArtifactTTL, f.written.Artifact.ExpiresAt.Sub(f.written.Artifact.CreatedAt))

	assert.Equal(t, []domain.AuditEventKind{domain.AuditPredictionCreated}, eventKinds(f.written.Events))
	assert.True(t, f.written.Events[0].ReferencesPrediction())
	f.scorer.AssertNotCalled(t, "ScoreStage", mock.Anything, mock.Anything)
}

func TestPredictionService_Run_PromotionGate(t *testing.T) {
	f := newPipelineFixture(time.Second)
	model := cnnModel()
	model.SupportsExplainability = false
	f.ready(model)
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.6, nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	require.NoError(t, err)

	assert.Equal(t, domain.RiskInconclusive, res.Prediction.RiskLevel)
	assert.Equal(t, domain.StatusInconclusive, res.Prediction.Status)
	assert.Equal(t, domain.BinaryMalignant, *res.Prediction.BinaryResult)
	f.explainer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPredictionService_Run_TimeoutPersistsModelError(t *testing.T) {
	f := newPipelineFixture(20 * time.Millisecond)
	f.ready(cnnModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).
		WaitUntil(time.After(300*time.Millisecond)).
		Return(0.9, nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInferenceTimeout)

	require.NotNil(t, res)
	p := res.Prediction
	assert.Equal(t, domain.StatusModelError, p.Status)
	assert.Equal(t, domain.RiskInconclusive, p.RiskLevel)
	assert.Nil(t, p.BinaryResult)
	assert.Nil(t, p.BinaryConfidence)
	assert.Nil(t, res.ExplainabilityRef)
	assert.Nil(t, f.written.Artifact)

	assert.Equal(t, []domain.AuditEventKind{domain.AuditPredictionCreated, domain.AuditInferenceFailed}, eventKinds(f.written.Events))
	failed := f.written.Events[1]
	require.NotNil(t, failed.ReferenceKind)
	assert.Equal(t, domain.RefModel, *failed.ReferenceKind)
	require.NotNil(t, failed.ReferenceID)
	assert.Equal(t, int64(1), *failed.ReferenceID)

	f.explainer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPredictionService_Run_ScoringFailure(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(cnnModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.0, errors.New("connection reset"))

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	assert.ErrorIs(t, err, domain.ErrInferenceFailure)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusModelError, res.Prediction.Status)
	assert.NotEmpty(t, res.Prediction.RiskLevel)
}

func TestPredictionService_Run_OutOfRangeProbability(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(cnnModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(1.3, nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	assert.ErrorIs(t, err, domain.ErrInferenceFailure)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusModelError, res.Prediction.Status)
}

func TestPredictionService_Run_InvalidInputNotPersisted(t *testing.T) {
	f := newPipelineFixture(time.Second)
	model := cnnModel()
	f.patients.On("GetOrCreate", mock.Anything, "DS-001").Return(&domain.Patient{ID: 7}, nil)
	f.models.On("GetActive", mock.Anything, model.Architecture).Return(model, nil)
	f.pre.On("Validate", testImage).Return(errors.New("unknown format"))

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	f.predictions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestPredictionService_Run_ModelNotFound(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.patients.On("GetOrCreate", mock.Anything, "DS-001").Return(&domain.Patient{ID: 7}, nil)
	f.models.On("GetActive", mock.Anything, domain.ArchVisionTransformer).Return(nil, domain.ErrModelNotFound)

	res, err := f.svc.Run(context.Background(), request(domain.SlotSecondary))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	f.pre.AssertNotCalled(t, "Validate", mock.Anything)
	f.predictions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPredictionService_Run_MissingExternalRef(t *testing.T) {
	f := newPipelineFixture(time.Second)

	_, err := f.svc.Run(context.Background(), PredictionRequest{ExternalRef: "  ", Slot: domain.SlotPrimary, Image: testImage})
	assert.ErrorIs(t, err, domain.ErrMissingExternalRef)
	f.patients.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
}

func TestPredictionService_Run_ModelLoadFailure(t *testing.T) {
	f := newPipelineFixture(time.Second)
	model := cnnModel()
	f.loader = new(testutil.MockModelLoader)
	f.loader.On("Load", mock.Anything, model).Return(nil, errors.New("endpoint not ready"))
	f.svc.runtime = NewModelRuntime(f.models, f.audit, map[domain.Architecture]ports.ModelLoader{
		domain.ArchBinaryClassifier: f.loader,
	}, nil)
	f.ready(model)

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrModelLoad)
	f.predictions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPredictionService_Run_StagePreferred(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(vitModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.75, nil)
	f.scorer.On("ScoreStage", mock.Anything, testTensor).Return(domain.StageScore{Label: "high", Confidence: 0.8}, nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotSecondary))
	require.NoError(t, err)

	p := res.Prediction
	assert.Equal(t, domain.StageHigh, *p.StageResult)
	assert.InDelta(t, 0.8, *p.StageConfidence, 1e-9)
	// MALIGNANT 0.75 alone would be MEDIUM.
	assert.Equal(t, domain.RiskHigh, p.RiskLevel)
	assert.Equal(t, domain.StatusSuccess, p.Status)
	assert.Nil(t, res.ExplainabilityRef)
}

func TestPredictionService_Run_UnmappedStageFallsBack(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(vitModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.75, nil)
	f.scorer.On("ScoreStage", mock.Anything, testTensor).Return(domain.StageScore{Label: "Scenario IIA", Confidence: 0.92}, nil)

	res, err := f.svc.Run(context.Background(), request(domain.SlotSecondary))
	require.NoError(t, err)

	assert.Equal(t, domain.StageHigh, *res.Prediction.StageResult)
	assert.InDelta(t, 0.75, *res.Prediction.StageConfidence, 1e-9)
	assert.Equal(t, domain.RiskHigh, res.Prediction.RiskLevel)
}

func TestPredictionService_Run_StageFailureIsDropped(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(vitModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.8, nil)
	f.scorer.On("ScoreStage", mock.Anything, testTensor).Return(domain.StageScore{}, errors.New("stage endpoint 500"))

	res, err := f.svc.Run(context.Background(), request(domain.SlotSecondary))
	require.NoError(t, err)

	assert.Nil(t, res.Prediction.StageResult)
	assert.Equal(t, domain.RiskMedium, res.Prediction.RiskLevel)
	assert.Equal(t, domain.StatusSuccess, res.Prediction.Status)
	assert.Equal(t, []domain.AuditEventKind{domain.AuditPredictionCreated}, eventKinds(f.written.Events))
}

func TestPredictionService_Run_ExplainabilityFailureIsDropped(t *testing.T) {
	f := newPipelineFixture(time.Second)
	f.ready(cnnModel())
	f.expectPersist()
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.95, nil)
	f.explainer.On("Generate", mock.Anything, mock.Anything, testTensor, domain.ExplainGradient).
		Return("", errors.New("explain endpoint unavailable"))

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, res.Prediction.Status)
	assert.Equal(t, domain.RiskHigh, res.Prediction.RiskLevel)
	assert.Nil(t, res.ExplainabilityRef)
	assert.Nil(t, f.written.Artifact)
}

func TestPredictionService_Run_PersistFailure(t *testing.T) {
	f := newPipelineFixture(time.Second)
	model := cnnModel()
	model.SupportsExplainability = false
	f.ready(model)
	f.scorer.On("ScoreBinary", mock.Anything, testTensor).Return(0.9, nil)
	f.predictions.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	res, err := f.svc.Run(context.Background(), request(domain.SlotPrimary))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "create prediction")
}

func TestBoundedScore(t *testing.T) {
	v, err := boundedScore(context.Background(), time.Second, func(context.Context) (float64, error) {
		return 0.4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.4, v)

	_, err = boundedScore(context.Background(), 10*time.Millisecond, func(ctx context.Context) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, domain.ErrInferenceTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = boundedScore(ctx, time.Second, func(ctx context.Context) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, domain.ErrInferenceFailure)
	assert.NotErrorIs(t, err, domain.ErrInferenceTimeout)
}
