package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/adapters/primary/http/dto"
	"scan-prediction-service/internal/core/domain"
)

func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.registrySvc.List(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("list models failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RegisteredModelResponse, 0, len(models))
	for _, m := range models {
		items = append(items, dto.ToRegisteredModelResponse(m))
	}

	c.JSON(http.StatusOK, dto.ListRegisteredModelsResponse{
		Items: items,
		Total: len(items),
	})
}

func (h *Handler) GetModel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	model, err := h.registrySvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRegisteredModelResponse(model))
}

func (h *Handler) RegisterModel(c *gin.Context) {
	var req dto.RegisterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, err := h.registrySvc.Register(c.Request.Context(), dto.ToRegisterModelRequest(&req))
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			log.WithError(err).Error("register model failed")
		}
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToRegisteredModelResponse(model))
}

// ReloadModel hot-swaps the scorer for a model type. The path segment shares
// the :id wildcard with GetModel and carries primary or secondary here.
func (h *Handler) ReloadModel(c *gin.Context) {
	slot, err := domain.ParseModelSlot(c.Param("id"))
	if err != nil || c.Param("id") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidModelType.Error()})
		return
	}

	model, err := h.registrySvc.Reload(c.Request.Context(), slot)
	if err != nil {
		log.WithError(err).WithField("model_type", slot).Error("reload model failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRegisteredModelResponse(model))
}

func (h *Handler) ModelHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToModelHealthResponse(h.registrySvc.Health()))
}
