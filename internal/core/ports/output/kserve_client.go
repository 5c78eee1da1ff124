package ports

import "context"

// InferenceEndpoint is the serving status of a KServe InferenceService.
type InferenceEndpoint struct {
	URL   string
	Ready bool
	Error string
}

// EndpointResolver discovers where a model is served.
type EndpointResolver interface {
	// Resolve returns the endpoint of the InferenceService named after the model.
	Resolve(ctx context.Context, name string) (*InferenceEndpoint, error)

	// IsAvailable checks if KServe integration is enabled and configured
	IsAvailable() bool
}
