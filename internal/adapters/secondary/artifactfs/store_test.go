package artifactfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-prediction-service/internal/core/domain"
)

func TestStore_PutAndDelete(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	ctx := context.Background()

	ref := "explainability/gradient/abc.png"
	require.NoError(t, s.Put(ctx, ref, "image/png", []byte("png")))

	data, err := os.ReadFile(filepath.Join(root, "explainability", "gradient", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	entries, err := os.ReadDir(filepath.Join(root, "explainability", "gradient"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed after rename")

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(root, "explainability", "gradient", "abc.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, ref), "deleting a missing artifact is a no-op")
}

func TestStore_RejectsRefsOutsideNamespace(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{"", "secrets/key.png", "explainability/../../etc/passwd", `explainability\x.png`} {
		assert.ErrorIs(t, s.Put(context.Background(), ref, "image/png", nil), domain.ErrInvalidArtifactRef, ref)
		assert.ErrorIs(t, s.Delete(context.Background(), ref), domain.ErrInvalidArtifactRef, ref)
	}
}
