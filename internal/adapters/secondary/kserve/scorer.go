package kserve

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

// Loader resolves a model's InferenceService and hands out a scorer bound to it.
type Loader struct {
	client   *Client
	resolver ports.EndpointResolver
	arch     domain.Architecture
}

func NewLoader(client *Client, resolver ports.EndpointResolver, arch domain.Architecture) *Loader {
	return &Loader{client: client, resolver: resolver, arch: arch}
}

// Loaders returns one loader per architecture, keyed the way ModelRuntime expects.
func Loaders(client *Client, resolver ports.EndpointResolver) map[domain.Architecture]ports.ModelLoader {
	return map[domain.Architecture]ports.ModelLoader{
		domain.ArchBinaryClassifier:  NewLoader(client, resolver, domain.ArchBinaryClassifier),
		domain.ArchVisionTransformer: NewLoader(client, resolver, domain.ArchVisionTransformer),
	}
}

func (l *Loader) Load(ctx context.Context, model *domain.RegisteredModel) (ports.Scorer, error) {
	if model.Architecture != l.arch {
		return nil, fmt.Errorf("loader for %s cannot load %s", l.arch, model.Architecture)
	}

	name := ServiceName(model)
	endpoint, err := l.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if !endpoint.Ready || endpoint.URL == "" {
		return nil, fmt.Errorf("inference service %s not ready: %s", name, endpoint.Error)
	}

	base := endpointScorer{client: l.client, baseURL: endpoint.URL, name: name}
	if l.arch == domain.ArchVisionTransformer {
		return &visionTransformerScorer{base}, nil
	}
	return &binaryClassifierScorer{base}, nil
}

type endpointScorer struct {
	client  *Client
	baseURL string
	name    string
}

func (s endpointScorer) ScoreStage(ctx context.Context, tensor *domain.Tensor) (domain.StageScore, error) {
	return s.client.Stage(ctx, s.baseURL, s.name, tensor)
}

// binaryClassifierScorer reads a single malignancy probability: [p] or [[p]].
type binaryClassifierScorer struct {
	endpointScorer
}

func (s *binaryClassifierScorer) ScoreBinary(ctx context.Context, tensor *domain.Tensor) (float64, error) {
	preds, err := s.client.Predict(ctx, s.baseURL, s.name, tensor)
	if err != nil {
		return 0, err
	}

	var p float64
	if err := json.Unmarshal(preds[0], &p); err == nil {
		return p, nil
	}
	var row []float64
	if err := json.Unmarshal(preds[0], &row); err != nil || len(row) == 0 {
		return 0, fmt.Errorf("decode binary prediction %s", string(preds[0]))
	}
	return row[0], nil
}

// visionTransformerScorer reads class scores [[benign, malignant]] and returns
// the malignant probability, softmaxing raw logits.
type visionTransformerScorer struct {
	endpointScorer
}

func (s *visionTransformerScorer) ScoreBinary(ctx context.Context, tensor *domain.Tensor) (float64, error) {
	preds, err := s.client.Predict(ctx, s.baseURL, s.name, tensor)
	if err != nil {
		return 0, err
	}

	var classes []float64
	if err := json.Unmarshal(preds[0], &classes); err != nil || len(classes) != 2 {
		return 0, fmt.Errorf("decode class scores %s", string(preds[0]))
	}
	return malignantProbability(classes), nil
}

func malignantProbability(classes []float64) float64 {
	sum := classes[0] + classes[1]
	if classes[0] >= 0 && classes[1] >= 0 && math.Abs(sum-1) < 1e-3 {
		return classes[1]
	}
	return softmax(classes)[1]
}

func softmax(xs []float64) []float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		max = math.Max(max, x)
	}
	out := make([]float64, len(xs))
	var total float64
	for i, x := range xs {
		out[i] = math.Exp(x - max)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

var (
	_ ports.ModelLoader = (*Loader)(nil)
	_ ports.Scorer      = (*binaryClassifierScorer)(nil)
	_ ports.Scorer      = (*visionTransformerScorer)(nil)
)
