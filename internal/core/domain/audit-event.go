package domain

import "time"

type AuditEventKind string

const (
	AuditPredictionCreated AuditEventKind = "PREDICTION_CREATED"
	AuditModelLoaded       AuditEventKind = "MODEL_LOADED"
	AuditModelReloaded     AuditEventKind = "MODEL_RELOADED"
	AuditInferenceFailed   AuditEventKind = "INFERENCE_FAILED"
)

func (k AuditEventKind) Valid() bool {
	switch k {
	case AuditPredictionCreated, AuditModelLoaded, AuditModelReloaded, AuditInferenceFailed:
		return true
	}
	return false
}

type ReferenceKind string

const (
	RefPrediction ReferenceKind = "PREDICTION"
	RefModel      ReferenceKind = "MODEL"
)

// MaxAuditMessageLength matches the audit_events.message column.
const MaxAuditMessageLength = 255

// AuditEvent is an immutable audit trail entry. Message is sanitized on write.
type AuditEvent struct {
	ID            int64          `json:"id"`
	Kind          AuditEventKind `json:"event_kind"`
	ReferenceID   *int64         `json:"reference_id,omitempty"`
	ReferenceKind *ReferenceKind `json:"reference_kind,omitempty"`
	Message       *string        `json:"message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewModelEvent builds an event referencing a registered model.
func NewModelEvent(kind AuditEventKind, modelID int64, message string) *AuditEvent {
	ref := RefModel
	ev := &AuditEvent{Kind: kind, ReferenceKind: &ref}
	if modelID != 0 {
		ev.ReferenceID = &modelID
	}
	if message != "" {
		ev.Message = &message
	}
	return ev
}

// NewPredictionEvent builds an event referencing a prediction. A zero id is
// filled in by the store once the prediction row exists.
func NewPredictionEvent(kind AuditEventKind, predictionID int64, message string) *AuditEvent {
	ref := RefPrediction
	ev := &AuditEvent{Kind: kind, ReferenceKind: &ref}
	if predictionID != 0 {
		ev.ReferenceID = &predictionID
	}
	if message != "" {
		ev.Message = &message
	}
	return ev
}

// ReferencesPrediction reports whether the event points at a prediction row.
func (e *AuditEvent) ReferencesPrediction() bool {
	return e.ReferenceKind != nil && *e.ReferenceKind == RefPrediction
}
