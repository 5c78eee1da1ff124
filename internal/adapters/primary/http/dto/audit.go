package dto

import (
	"time"

	"scan-prediction-service/internal/core/domain"
)

type AuditEventResponse struct {
	ID            int64   `json:"id"`
	EventKind     string  `json:"event_kind"`
	ReferenceID   *int64  `json:"reference_id"`
	ReferenceKind *string `json:"reference_kind"`
	Message       *string `json:"message"`
	CreatedAt     string  `json:"created_at"`
}

type ListAuditEventsResponse struct {
	Items      []AuditEventResponse `json:"items"`
	Total      int                  `json:"total"`
	PageSize   int                  `json:"page_size"`
	NextOffset int                  `json:"next_offset"`
}

func ToAuditEventResponse(e *domain.AuditEvent) AuditEventResponse {
	resp := AuditEventResponse{
		ID:          e.ID,
		EventKind:   string(e.Kind),
		ReferenceID: e.ReferenceID,
		Message:     e.Message,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
	if e.ReferenceKind != nil {
		k := string(*e.ReferenceKind)
		resp.ReferenceKind = &k
	}
	return resp
}

type SweepResponse struct {
	Deleted int `json:"deleted"`
}
