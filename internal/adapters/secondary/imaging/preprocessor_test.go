package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encode(t *testing.T, w, h int, fill color.Color, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, img))
	return buf.Bytes()
}

func pngEnc(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }
func bmpEnc(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }

func TestValidate(t *testing.T) {
	p := NewPreprocessor()

	dicom := make([]byte, 256)
	copy(dicom[128:], "DICM")

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"png", encode(t, 64, 48, color.White, pngEnc), false},
		{"bmp", encode(t, 32, 32, color.Black, bmpEnc), false},
		{"empty", nil, true},
		{"text", []byte("patient scan notes"), true},
		{"too small", encode(t, 8, 8, color.White, pngEnc), true},
		{"dicom", dicom, true},
		{"oversized", make([]byte, MaxUploadBytes+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPreprocess_ShapeAndRange(t *testing.T) {
	p := NewPreprocessor()

	tensor, err := p.Preprocess(encode(t, 300, 100, color.White, pngEnc))
	require.NoError(t, err)

	assert.Equal(t, []int{1, InputSize, InputSize}, tensor.Shape)
	require.Len(t, tensor.Data, InputSize*InputSize)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 0.01)
	}
}

func TestPreprocess_Black(t *testing.T) {
	tensor, err := NewPreprocessor().Preprocess(encode(t, 32, 32, color.Black, bmpEnc))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tensor.Data[0], 0.01)
	assert.InDelta(t, 0.0, tensor.Data[len(tensor.Data)-1], 0.01)
}

func TestPreprocess_RejectsInvalid(t *testing.T) {
	_, err := NewPreprocessor().Preprocess([]byte{0x00, 0x01})
	assert.Error(t, err)
}
