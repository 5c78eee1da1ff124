package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/adapters/primary/http/dto"
	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

func (h *Handler) ListAuditEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.recordSvc.AuditEvents(c.Request.Context(), ports.AuditListFilter{
		Kind:   domain.AuditEventKind(c.Query("event_kind")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		mapDomainError(c, err)
		return
	}

	items := make([]dto.AuditEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, dto.ToAuditEventResponse(e))
	}

	c.JSON(http.StatusOK, dto.ListAuditEventsResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) SweepArtifacts(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact sweeper disabled"})
		return
	}

	deleted, err := h.sweeper.Sweep(c.Request.Context(), time.Now())
	if err != nil {
		log.WithError(err).Error("artifact sweep failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SweepResponse{Deleted: deleted})
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			log.WithError(err).Warn("database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
