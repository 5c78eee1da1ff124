// Package risk maps raw model outputs onto clinical risk levels.
//
// Two gates are easy to conflate:
//   - ConfidenceFloor (0.4) is checked first by Classify and yields INCONCLUSIVE
//     for any probability under it, before the LOW/MEDIUM/HIGH buckets apply.
//   - PromotionGate (0.7) is applied by Derive to the binary confidence and decides
//     whether a binary result may become a definitive risk level at all.
//
// Everything here is pure and deterministic.
package risk

import (
	"math"
	"strings"

	"scan-prediction-service/internal/core/domain"
)

const (
	ConfidenceFloor = 0.4
	LowUpper        = 0.3
	MediumUpper     = 0.7

	PromotionGate          = 0.7
	MalignantThreshold     = 0.5
	MalignantHighThreshold = 0.85
)

// Classify buckets a probability. Lower bounds are closed, so 0.7 is HIGH.
// Because the floor is above LowUpper, LOW is unreachable through Classify.
func Classify(p float64) domain.RiskLevel {
	if math.IsNaN(p) || p < ConfidenceFloor {
		return domain.RiskInconclusive
	}
	switch {
	case p < LowUpper:
		return domain.RiskLow
	case p < MediumUpper:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// BinaryFromProbability turns a malignancy probability into a binary label.
func BinaryFromProbability(p float64) domain.BinaryResult {
	if p >= MalignantThreshold {
		return domain.BinaryMalignant
	}
	return domain.BinaryBenign
}

// DeriveStage looks up a stage label, returning StageUnknown when it cannot be mapped.
func DeriveStage(label string) domain.StageResult {
	l := strings.ToUpper(strings.TrimSpace(label))
	l = strings.TrimSuffix(l, " RISK")
	switch l {
	case "LOW":
		return domain.StageLow
	case "MEDIUM":
		return domain.StageMedium
	case "HIGH":
		return domain.StageHigh
	}
	return domain.StageUnknown
}

// StageFromClassification derives a stage and its confidence from the binary
// probability. ok is false when the probability classifies as inconclusive.
func StageFromClassification(p float64) (stage domain.StageResult, confidence float64, ok bool) {
	switch Classify(p) {
	case domain.RiskHigh:
		return domain.StageHigh, p, true
	case domain.RiskMedium:
		return domain.StageMedium, p * 0.8, true
	case domain.RiskLow:
		return domain.StageLow, 1 - p, true
	}
	return domain.StageUnknown, 0, false
}

// Derive computes the final risk level of a prediction.
func Derive(binary *domain.BinaryResult, confidence *float64, stage *domain.StageResult) domain.RiskLevel {
	if confidence == nil || math.IsNaN(*confidence) || *confidence < PromotionGate {
		return domain.RiskInconclusive
	}

	if stage != nil {
		switch *stage {
		case domain.StageHigh:
			return domain.RiskHigh
		case domain.StageMedium:
			return domain.RiskMedium
		case domain.StageLow:
			return domain.RiskLow
		}
	}

	if binary == nil {
		return domain.RiskInconclusive
	}
	switch *binary {
	case domain.BinaryMalignant:
		if *confidence >= MalignantHighThreshold {
			return domain.RiskHigh
		}
		return domain.RiskMedium
	case domain.BinaryBenign:
		return domain.RiskLow
	}
	return domain.RiskInconclusive
}
