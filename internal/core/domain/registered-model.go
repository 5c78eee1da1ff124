package domain

import (
	"strings"
	"time"
)

// Architecture is the model family a registered model belongs to.
type Architecture string

const (
	ArchBinaryClassifier  Architecture = "binary-classifier"
	ArchVisionTransformer Architecture = "vision-transformer"
)

func (a Architecture) Valid() bool {
	return a == ArchBinaryClassifier || a == ArchVisionTransformer
}

// ExplainabilityMethod names how a model's visual explanation is produced.
type ExplainabilityMethod string

const (
	ExplainNone      ExplainabilityMethod = "none"
	ExplainGradient  ExplainabilityMethod = "gradient"
	ExplainAttention ExplainabilityMethod = "attention"
)

func (m ExplainabilityMethod) Valid() bool {
	return m == ExplainNone || m == ExplainGradient || m == ExplainAttention
}

// ModelSlot is the caller-facing model selector on a prediction request.
type ModelSlot string

const (
	SlotPrimary   ModelSlot = "primary"
	SlotSecondary ModelSlot = "secondary"
)

// ParseModelSlot accepts the slot names plus the legacy architecture aliases.
func ParseModelSlot(s string) (ModelSlot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary", "cnn_rnn":
		return SlotPrimary, nil
	case "secondary", "vit":
		return SlotSecondary, nil
	}
	return "", ErrInvalidModelType
}

// Architecture maps a slot onto the family that serves it.
func (s ModelSlot) Architecture() Architecture {
	if s == SlotSecondary {
		return ArchVisionTransformer
	}
	return ArchBinaryClassifier
}

// RegisteredModel is a named, versioned scoring unit. Rows are seeded at
// deployment time and never mutated; the newest row of an architecture is active.
type RegisteredModel struct {
	ID                     int64                `json:"id"`
	Name                   string               `json:"name"`
	Version                string               `json:"version"`
	Architecture           Architecture         `json:"architecture"`
	SupportsBinary         bool                 `json:"supports_binary"`
	SupportsStage          bool                 `json:"supports_stage"`
	SupportsExplainability bool                 `json:"supports_explainability"`
	ExplainabilityMethod   ExplainabilityMethod `json:"explainability_method"`
	CreatedAt              time.Time            `json:"created_at"`
}

// NewerThan reports whether m wins newest-wins activation over o: later
// CreatedAt, ties broken by the higher id.
func (m *RegisteredModel) NewerThan(o *RegisteredModel) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.After(o.CreatedAt)
	}
	return m.ID > o.ID
}

// Explains reports whether the model declares a usable explanation method.
func (m *RegisteredModel) Explains() bool {
	return m.SupportsExplainability && m.ExplainabilityMethod != ExplainNone && m.ExplainabilityMethod != ""
}

// Validate checks the registration fields before a model row is created.
func (m *RegisteredModel) Validate() error {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Version) == "" {
		return ErrInvalidModelName
	}
	if !m.Architecture.Valid() {
		return ErrInvalidArch
	}
	if m.ExplainabilityMethod == "" {
		m.ExplainabilityMethod = ExplainNone
	}
	if !m.ExplainabilityMethod.Valid() {
		return ErrInvalidMethod
	}
	return nil
}
