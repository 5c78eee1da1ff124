package kserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scan-prediction-service/internal/core/domain"
)

const maxErrorBody = 512

// Client speaks the KServe V1 inference protocol.
type Client struct {
	http        *http.Client
	stageSuffix string
}

// NewClient creates an inference client. Call deadlines come from the request
// context, so the http.Client carries no timeout of its own.
func NewClient(httpClient *http.Client, stageSuffix string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if stageSuffix == "" {
		stageSuffix = "-stage"
	}
	return &Client{http: httpClient, stageSuffix: stageSuffix}
}

type inferRequest struct {
	Instances  []instance        `json:"instances"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type instance struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

type stageResponse struct {
	Stage       string            `json:"stage"`
	Confidence  *float64          `json:"confidence"`
	Predictions []json.RawMessage `json:"predictions"`
}

type explainResponse struct {
	Explanations [][][]float64 `json:"explanations"`
}

// Predict calls {base}/v1/models/{name}:predict and returns the raw predictions.
func (c *Client) Predict(ctx context.Context, baseURL, name string, tensor *domain.Tensor) ([]json.RawMessage, error) {
	var resp predictResponse
	if err := c.post(ctx, modelURL(baseURL, name, "predict"), newInferRequest(tensor, nil), &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("predict %s: empty predictions", name)
	}
	return resp.Predictions, nil
}

// Stage calls the companion {name}-stage predictor.
func (c *Client) Stage(ctx context.Context, baseURL, name string, tensor *domain.Tensor) (domain.StageScore, error) {
	stageName := name + c.stageSuffix

	var resp stageResponse
	if err := c.post(ctx, modelURL(baseURL, stageName, "predict"), newInferRequest(tensor, nil), &resp); err != nil {
		return domain.StageScore{}, err
	}

	if resp.Stage == "" && len(resp.Predictions) > 0 {
		if err := json.Unmarshal(resp.Predictions[0], &resp); err != nil {
			return domain.StageScore{}, fmt.Errorf("decode stage prediction: %w", err)
		}
	}
	if resp.Stage == "" || resp.Confidence == nil {
		return domain.StageScore{}, fmt.Errorf("stage %s: missing stage or confidence", stageName)
	}
	return domain.StageScore{Label: resp.Stage, Confidence: *resp.Confidence}, nil
}

// Explain calls {base}/v1/models/{name}:explain and returns the first heatmap.
func (c *Client) Explain(ctx context.Context, baseURL, name string, tensor *domain.Tensor, method domain.ExplainabilityMethod) ([][]float64, error) {
	params := map[string]string{"method": string(method)}

	var resp explainResponse
	if err := c.post(ctx, modelURL(baseURL, name, "explain"), newInferRequest(tensor, params), &resp); err != nil {
		return nil, err
	}
	if len(resp.Explanations) == 0 || len(resp.Explanations[0]) == 0 {
		return nil, fmt.Errorf("explain %s: empty explanation", name)
	}
	return resp.Explanations[0], nil
}

func (c *Client) post(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("kserve returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newInferRequest(tensor *domain.Tensor, params map[string]string) inferRequest {
	return inferRequest{
		Instances:  []instance{{Shape: tensor.Shape, Data: tensor.Data}},
		Parameters: params,
	}
}

func modelURL(baseURL, name, verb string) string {
	return fmt.Sprintf("%s/v1/models/%s:%s", strings.TrimRight(baseURL, "/"), name, verb)
}
