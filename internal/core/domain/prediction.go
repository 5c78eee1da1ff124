package domain

import (
	"math"
	"time"
)

type PredictionStatus string

const (
	StatusSuccess      PredictionStatus = "SUCCESS"
	StatusInconclusive PredictionStatus = "INCONCLUSIVE"
	StatusModelError   PredictionStatus = "MODEL_ERROR"
	StatusInputInvalid PredictionStatus = "INPUT_INVALID"
)

var PredictionStatuses = []PredictionStatus{StatusSuccess, StatusInconclusive, StatusModelError, StatusInputInvalid}

type BinaryResult string

const (
	BinaryBenign    BinaryResult = "BENIGN"
	BinaryMalignant BinaryResult = "MALIGNANT"
)

type StageResult string

const (
	StageLow    StageResult = "LOW"
	StageMedium StageResult = "MEDIUM"
	StageHigh   StageResult = "HIGH"

	// StageUnknown is never persisted; it marks a stage label that could not be mapped.
	StageUnknown StageResult = "Unknown"
)

type RiskLevel string

const (
	RiskLow          RiskLevel = "LOW"
	RiskMedium       RiskLevel = "MEDIUM"
	RiskHigh         RiskLevel = "HIGH"
	RiskInconclusive RiskLevel = "INCONCLUSIVE"
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskInconclusive}

// Prediction is the append-only medical record produced by one pipeline run.
type Prediction struct {
	ID               int64            `json:"id"`
	PatientID        int64            `json:"patient_id"`
	ModelID          int64            `json:"model_id"`
	Status           PredictionStatus `json:"status"`
	BinaryResult     *BinaryResult    `json:"binary_result"`
	BinaryConfidence *float64         `json:"binary_confidence"`
	StageResult      *StageResult     `json:"stage_result"`
	StageConfidence  *float64         `json:"stage_confidence"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	InferenceTimeMs  int64            `json:"inference_time_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Validate enforces the record invariants checked before every insert.
func (p *Prediction) Validate() error {
	if p.RiskLevel == "" {
		return ErrMissingRiskLevel
	}
	if !validConfidence(p.BinaryConfidence) || !validConfidence(p.StageConfidence) {
		return ErrInvalidConfidence
	}
	return nil
}

func validConfidence(c *float64) bool {
	if c == nil {
		return true
	}
	return !math.IsNaN(*c) && *c >= 0 && *c <= 1
}

// Statistics aggregates prediction counts for reporting.
type Statistics struct {
	Total       int                      `json:"total"`
	ByRiskLevel map[RiskLevel]int        `json:"by_risk_level"`
	ByStatus    map[PredictionStatus]int `json:"by_status"`
}

// NewStatistics returns a Statistics with every enum value present at zero.
func NewStatistics() *Statistics {
	s := &Statistics{
		ByRiskLevel: make(map[RiskLevel]int, len(RiskLevels)),
		ByStatus:    make(map[PredictionStatus]int, len(PredictionStatuses)),
	}
	for _, r := range RiskLevels {
		s.ByRiskLevel[r] = 0
	}
	for _, st := range PredictionStatuses {
		s.ByStatus[st] = 0
	}
	return s
}
