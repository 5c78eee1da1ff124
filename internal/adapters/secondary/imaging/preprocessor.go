// Package imaging decodes uploaded scans and turns them into model-ready tensors.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

const (
	// InputSize is the square edge both model families expect.
	InputSize = 224

	MaxUploadBytes = 20 << 20
	minDimension   = 16
	maxDimension   = 8192

	dicomPreamble = 128
)

var formats = map[string]bool{"png": true, "jpeg": true, "gif": true, "bmp": true, "tiff": true, "webp": true}

type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Validate checks size, format and dimensions without decoding pixel data.
func (p *Preprocessor) Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	if len(data) > MaxUploadBytes {
		return fmt.Errorf("payload exceeds %d bytes", MaxUploadBytes)
	}
	if isDICOM(data) {
		return fmt.Errorf("DICOM payloads must be exported to a raster format before upload")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	if !formats[format] {
		return fmt.Errorf("unsupported image format %s", format)
	}
	if cfg.Width < minDimension || cfg.Height < minDimension {
		return fmt.Errorf("image %dx%d below minimum %dx%d", cfg.Width, cfg.Height, minDimension, minDimension)
	}
	if cfg.Width > maxDimension || cfg.Height > maxDimension {
		return fmt.Errorf("image %dx%d above maximum %dx%d", cfg.Width, cfg.Height, maxDimension, maxDimension)
	}
	return nil
}

// Preprocess decodes the image, converts it to grayscale, resamples it to
// InputSize x InputSize and scales intensities to [0, 1].
func (p *Preprocessor) Preprocess(data []byte) (*domain.Tensor, error) {
	if err := p.Validate(data); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := image.NewGray(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, InputSize*InputSize)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			out[y*InputSize+x] = float32(gray.GrayAt(x, y).Y) / 255
		}
	}

	return &domain.Tensor{Shape: []int{1, InputSize, InputSize}, Data: out}, nil
}

func isDICOM(data []byte) bool {
	return len(data) >= dicomPreamble+4 && string(data[dicomPreamble:dicomPreamble+4]) == "DICM"
}

var _ ports.Preprocessor = (*Preprocessor)(nil)
