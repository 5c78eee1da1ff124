package domain

import (
	"strings"
	"time"
)

const DefaultArtifactTTL = 24 * time.Hour

// ArtifactNamespace prefixes every explainability artifact reference.
const ArtifactNamespace = "explainability/"

// ExplainabilityArtifact references a visual explanation; it never holds image content.
type ExplainabilityArtifact struct {
	ID           int64                `json:"id"`
	PredictionID int64                `json:"prediction_id"`
	Kind         ExplainabilityMethod `json:"kind"`
	Ref          string               `json:"ref"`
	ExpiresAt    time.Time            `json:"expires_at"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Expired reports whether the artifact is eligible for deletion at now.
func (a *ExplainabilityArtifact) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// ValidateArtifactRef accepts only refs inside the artifact namespace with no
// traversal segments.
func ValidateArtifactRef(ref string) error {
	if !strings.HasPrefix(ref, ArtifactNamespace) || strings.Contains(ref, "..") || strings.ContainsRune(ref, '\\') {
		return ErrInvalidArtifactRef
	}
	return nil
}
