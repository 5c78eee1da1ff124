// Package explain renders model explanations into PNG heatmaps and stores them
// as explainability artifacts.
package explain

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

// OutputSize is the edge length of rendered heatmaps, matching the model input.
const OutputSize = 224

// HeatmapSource produces a per-pixel relevance matrix for one tensor.
type HeatmapSource interface {
	Heatmap(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor, method domain.ExplainabilityMethod) ([][]float64, error)
}

type Generator struct {
	source HeatmapSource
	store  ports.ArtifactStore
}

func NewGenerator(source HeatmapSource, store ports.ArtifactStore) *Generator {
	return &Generator{source: source, store: store}
}

// Generate fetches the heatmap, renders it and returns the stored artifact ref.
func (g *Generator) Generate(ctx context.Context, model *domain.RegisteredModel, tensor *domain.Tensor, method domain.ExplainabilityMethod) (string, error) {
	if method == domain.ExplainNone || !method.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidMethod, method)
	}

	heatmap, err := g.source.Heatmap(ctx, model, tensor, method)
	if err != nil {
		return "", fmt.Errorf("fetch heatmap: %w", err)
	}

	data, err := Render(heatmap)
	if err != nil {
		return "", err
	}

	ref := Ref(method, uuid.New())
	if err := g.store.Put(ctx, ref, "image/png", data); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}

// Ref builds the artifact reference explainability/<method>/<id>.png.
func Ref(method domain.ExplainabilityMethod, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s.png", domain.ArtifactNamespace, method, id)
}

// Render normalizes the matrix to [0, 1], colours it and scales it to OutputSize.
func Render(heatmap [][]float64) ([]byte, error) {
	rows := len(heatmap)
	if rows == 0 || len(heatmap[0]) == 0 {
		return nil, fmt.Errorf("render heatmap: empty matrix")
	}
	cols := len(heatmap[0])

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range heatmap {
		if len(row) != cols {
			return nil, fmt.Errorf("render heatmap: ragged matrix")
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("render heatmap: non-finite value")
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	src := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y, row := range heatmap {
		for x, v := range row {
			t := 0.0
			if hi > lo {
				t = (v - lo) / (hi - lo)
			}
			src.Set(x, y, jet(t))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

// jet maps t in [0, 1] onto a blue-cyan-yellow-red ramp.
func jet(t float64) color.RGBA {
	clamp := func(v float64) uint8 {
		return uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
	}
	return color.RGBA{
		R: clamp(1.5 - math.Abs(4*t-3)),
		G: clamp(1.5 - math.Abs(4*t-2)),
		B: clamp(1.5 - math.Abs(4*t-1)),
		A: 255,
	}
}

var _ ports.Explainer = (*Generator)(nil)
