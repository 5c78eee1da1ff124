package kserve

import (
	"context"
	"fmt"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

// Explanations fetches heatmaps from the model's :explain endpoint.
type Explanations struct {
	client   *Client
	resolver ports.EndpointResolver
}

func NewExplanations(client *Client, resolver ports.EndpointResolver) *Explanations {
	return &Explanations{client: client, resolver: resolver}
}

func (e *Explanations) Heatmap(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor, method domain.ExplainabilityMethod) ([][]float64, error) {
	name := ServiceName(model)
	endpoint, err := e.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if !endpoint.Ready {
		return nil, fmt.Errorf("inference service %s not ready: %s", name, endpoint.Error)
	}
	return e.client.Explain(ctx, endpoint.URL, name, tensor, method)
}
