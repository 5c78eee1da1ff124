package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scan-prediction-service/internal/core/domain"
	ports "scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/core/risk"
)

const (
	DefaultInferenceTimeout = 5 * time.Second

	scoreCallBinary = "binary"
	scoreCallStage  = "stage"
)

type PredictionConfig struct {
	InferenceTimeout time.Duration
	ArtifactTTL      time.Duration
}

type PredictionRequest struct {
	ExternalRef string
	Slot        domain.ModelSlot
	Image       []byte
}

type PredictionResult struct {
	Prediction        *domain.Prediction
	Patient           *domain.Patient
	Model             *domain.RegisteredModel
	ExplainabilityRef *string
	Artifact          *domain.ExplainabilityArtifact
}

// PredictionService runs the scan prediction pipeline. It holds no
// per-request state and is safe for concurrent use.
type PredictionService struct {
	patients     ports.PatientRepository
	models       ports.RegisteredModelRepository
	predictions  ports.PredictionRepository
	runtime      *ModelRuntime
	preprocessor ports.Preprocessor
	explainer    ports.Explainer
	metrics      ports.PipelineMetrics
	tracer       trace.Tracer
	cfg          PredictionConfig
	now          func() time.Time
}

func NewPredictionService(
	store ports.Store,
	runtime *ModelRuntime,
	preprocessor ports.Preprocessor,
	explainer ports.Explainer,
	metrics ports.PipelineMetrics,
	cfg PredictionConfig,
) *PredictionService {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultInferenceTimeout
	}
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = domain.DefaultArtifactTTL
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PredictionService{
		patients:     store.Patients,
		models:       store.Models,
		predictions:  store.Predictions,
		runtime:      runtime,
		preprocessor: preprocessor,
		explainer:    explainer,
		metrics:      metrics,
		tracer:       otel.Tracer("scan-prediction-service/services"),
		cfg:          cfg,
		now:          time.Now,
	}
}

// Run executes one prediction. When binary scoring fails the MODEL_ERROR
// record is still persisted and returned together with the scoring error.
func (s *PredictionService) Run(ctx context.Context, req PredictionRequest) (*PredictionResult, error) {
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "prediction.run")
	defer span.End()

	ref, err := domain.NormalizeExternalRef(req.ExternalRef)
	if err != nil {
		return nil, err
	}
	arch := req.Slot.Architecture()
	span.SetAttributes(attribute.String("model.architecture", string(arch)))

	// 1. Patient
	patient, err := traced(ctx, s.tracer, "prediction.resolve_patient", func(ctx context.Context) (*domain.Patient, error) {
		return s.patients.GetOrCreate(ctx, ref)
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("resolve patient: %w", err))
	}

	// 2. Active model
	model, err := traced(ctx, s.tracer, "prediction.active_model", func(ctx context.Context) (*domain.RegisteredModel, error) {
		return s.models.GetActive(ctx, arch)
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("get active model: %w", err))
	}
	span.SetAttributes(attribute.Int64("model.id", model.ID))

	// 3-4. Input
	tensor, err := traced(ctx, s.tracer, "prediction.preprocess", func(context.Context) (*domain.Tensor, error) {
		if err := s.preprocessor.Validate(req.Image); err != nil {
			return nil, invalidInput(err)
		}
		t, err := s.preprocessor.Preprocess(req.Image)
		if err != nil {
			return nil, invalidInput(err)
		}
		return t, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	scorer, release, err := s.runtime.Scorer(ctx, model)
	if err != nil {
		return nil, fail(span, err)
	}
	defer release()

	pred := &domain.Prediction{
		PatientID: patient.ID,
		ModelID:   model.ID,
		Status:    domain.StatusSuccess,
		RiskLevel: domain.RiskInconclusive,
	}
	var events []*domain.AuditEvent

	// 5. Binary scoring
	prob, scoreErr := scoreCall(ctx, s, arch, scoreCallBinary, func(ctx context.Context) (float64, error) {
		p, err := scorer.ScoreBinary(ctx, tensor)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, fmt.Errorf("probability %v out of range", p)
		}
		return p, nil
	})

	var (
		artifact *domain.ExplainabilityArtifact
		explRef  *string
	)

	if scoreErr != nil {
		pred.Status = domain.StatusModelError
		events = append(events, domain.NewModelEvent(domain.AuditInferenceFailed, model.ID,
			fmt.Sprintf("Binary inference failed for model %s %s: %v", model.Name, model.Version, scoreErr)))
		log.WithError(scoreErr).WithField("model_id", model.ID).Error("Binary inference failed")
	} else {
		binary := risk.BinaryFromProbability(prob)
		pred.BinaryResult = &binary
		pred.BinaryConfidence = &prob

		// 6. Stage scoring
		if model.SupportsStage {
			stage := s.stage(ctx, arch, scorer, tensor, prob)
			if stage.err == nil {
				pred.StageResult = &stage.value.result
				pred.StageConfidence = &stage.value.confidence
			} else {
				stage.drop("stage scoring", log.Fields{"model_id": model.ID})
			}
		}

		// 7. Risk
		pred.RiskLevel = risk.Derive(pred.BinaryResult, pred.BinaryConfidence, pred.StageResult)
		if pred.RiskLevel == domain.RiskInconclusive {
			pred.Status = domain.StatusInconclusive
		}

		// 8. Explainability
		if s.explainer != nil && model.Explains() {
			expl := s.explain(ctx, model, tensor)
			if expl.err == nil {
				now := s.now()
				ref := expl.value
				explRef = &ref
				artifact = &domain.ExplainabilityArtifact{
					Kind:      model.ExplainabilityMethod,
					Ref:       ref,
					ExpiresAt: now.Add(s.cfg.ArtifactTTL),
					CreatedAt: now,
				}
			} else {
				expl.drop("explainability", log.Fields{"model_id": model.ID, "method": model.ExplainabilityMethod})
			}
		}
	}

	// 9. Persist
	pred.InferenceTimeMs = s.now().Sub(start).Milliseconds()
	events = append([]*domain.AuditEvent{
		domain.NewPredictionEvent(domain.AuditPredictionCreated, 0,
			fmt.Sprintf("Prediction created with status %s and risk level %s", pred.Status, pred.RiskLevel)),
	}, events...)

	write := &ports.PredictionWrite{Prediction: pred, Artifact: artifact, Events: events}
	if _, err := traced(ctx, s.tracer, "prediction.persist", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.predictions.Create(ctx, write)
	}); err != nil {
		log.WithError(err).WithField("model_id", model.ID).Error("Failed to persist prediction")
		return nil, fail(span, fmt.Errorf("create prediction: %w", err))
	}

	elapsed := s.now().Sub(start)
	s.metrics.ObservePrediction(arch, pred.Status, pred.RiskLevel, elapsed)
	span.SetAttributes(
		attribute.Int64("prediction.id", pred.ID),
		attribute.String("prediction.status", string(pred.Status)),
		attribute.String("prediction.risk_level", string(pred.RiskLevel)),
	)

	log.WithFields(log.Fields{
		"prediction_id": pred.ID,
		"patient_id":    patient.ID,
		"model_id":      model.ID,
		"status":        pred.Status,
		"risk_level":    pred.RiskLevel,
		"elapsed_ms":    elapsed.Milliseconds(),
	}).Info("Prediction recorded")

	// 10. Result
	result := &PredictionResult{
		Prediction:        pred,
		Patient:           patient,
		Model:             model,
		ExplainabilityRef: explRef,
		Artifact:          write.Artifact,
	}
	if scoreErr != nil {
		return result, fail(span, fmt.Errorf("score binary: %w", scoreErr))
	}
	return result, nil
}

type stageScore struct {
	result     domain.StageResult
	confidence float64
}

func (s *PredictionService) stage(ctx context.Context, arch domain.Architecture, scorer ports.Scorer, tensor *domain.Tensor, prob float64) outcome[stageScore] {
	raw, err := scoreCall(ctx, s, arch, scoreCallStage, func(ctx context.Context) (domain.StageScore, error) {
		return scorer.ScoreStage(ctx, tensor)
	})
	if err != nil {
		return outcome[stageScore]{err: err}
	}

	if result := risk.DeriveStage(raw.Label); result != domain.StageUnknown {
		if math.IsNaN(raw.Confidence) || raw.Confidence < 0 || raw.Confidence > 1 {
			return outcome[stageScore]{err: fmt.Errorf("%w: stage confidence %v", domain.ErrInvalidConfidence, raw.Confidence)}
		}
		return outcome[stageScore]{value: stageScore{result: result, confidence: raw.Confidence}}
	}

	// Unmapped labels fall back to the stage implied by the binary probability.
	result, conf, ok := risk.StageFromClassification(prob)
	if !ok {
		return outcome[stageScore]{err: fmt.Errorf("unmapped stage label and inconclusive probability")}
	}
	return outcome[stageScore]{value: stageScore{result: result, confidence: conf}}
}

func (s *PredictionService) explain(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor) outcome[string] {
	ref, err := traced(ctx, s.tracer, "prediction.explain", func(ctx context.Context) (string, error) {
		return s.explainer.Generate(ctx, model, tensor, model.ExplainabilityMethod)
	})
	if err == nil && ref == "" {
		err = errors.New("explainer returned an empty reference")
	}
	return outcome[string]{value: ref, err: err}
}

// scoreCall runs a bounded scoring call inside a span and records its latency.
func scoreCall[T any](ctx context.Context, s *PredictionService, arch domain.Architecture, call string, fn func(context.Context) (T, error)) (T, error) {
	started := s.now()
	v, err := traced(ctx, s.tracer, "prediction.score_"+call, func(ctx context.Context) (T, error) {
		return boundedScore(ctx, s.cfg.InferenceTimeout, fn)
	})
	s.metrics.ObserveScoring(arch, call, s.now().Sub(started), err)
	return v, err
}

// boundedScore runs call with a deadline. The call runs in its own goroutine
// so a scorer that ignores its context still cannot hold the request past the
// deadline.
func boundedScore[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.value, nil
		}
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", domain.ErrInferenceTimeout, timeout)
		}
		return zero, fmt.Errorf("%w: %v", domain.ErrInferenceFailure, r.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", domain.ErrInferenceTimeout, timeout)
		}
		return zero, fmt.Errorf("%w: %v", domain.ErrInferenceFailure, ctx.Err())
	}
}

// outcome is the result of a best-effort step whose failure is logged and dropped.
type outcome[T any] struct {
	value T
	err   error
}

func (o outcome[T]) drop(step string, fields log.Fields) {
	log.WithError(o.err).WithFields(fields).Warnf("%s failed, continuing without it", step)
}

func traced[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func invalidInput(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
