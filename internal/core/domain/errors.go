package domain

import "errors"

// ============================================================================
// Model Registry Errors
// ============================================================================

var (
	ErrModelNotFound     = errors.New("no registered model for the requested type")
	ErrModelNameConflict = errors.New("model with this name and version already exists")
	ErrInvalidModelName  = errors.New("model name and version are required")
	ErrInvalidModelType  = errors.New("model type must be primary or secondary")
	ErrInvalidArch       = errors.New("unknown model architecture")
	ErrInvalidMethod     = errors.New("unknown explainability method")
)

// ============================================================================
// Inference Errors
// ============================================================================

var (
	ErrModelLoad        = errors.New("scoring model unavailable")
	ErrInferenceTimeout = errors.New("inference timed out")
	ErrInferenceFailure = errors.New("inference failed")
)

// ============================================================================
// Input Errors
// ============================================================================

var (
	ErrInvalidInput       = errors.New("invalid image payload")
	ErrMissingExternalRef = errors.New("external_ref is required")
	ErrInvalidExternalRef = errors.New("external_ref must be at most 64 characters")
	ErrInvalidConfidence  = errors.New("confidence must be within [0, 1]")
	ErrInvalidEventKind   = errors.New("unknown audit event kind")
)

// ============================================================================
// Record Store Errors
// ============================================================================

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrMissingRiskLevel   = errors.New("prediction risk level is required")
	ErrInvalidArtifactRef = errors.New("artifact ref outside the explainability namespace")
)
