package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/adapters/primary/http/dto"
	"scan-prediction-service/internal/adapters/secondary/imaging"
	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/core/services"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

func (h *Handler) CreatePrediction(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, imaging.MaxUploadBytes+formOverhead)

	slot, err := domain.ParseModelSlot(c.DefaultPostForm("model_type", string(domain.SlotPrimary)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.predictionSvc.Run(c.Request.Context(), services.PredictionRequest{
		ExternalRef: c.PostForm("external_ref"),
		Slot:        slot,
		Image:       image,
	})
	if err != nil && result == nil {
		if statusFor(err) >= http.StatusInternalServerError {
			log.WithError(err).Error("create prediction failed")
		}
		mapDomainError(c, err)
		return
	}
	if err != nil {
		c.JSON(statusFor(err), dto.ToCreatePredictionResponse(result, err))
		return
	}

	c.JSON(http.StatusCreated, dto.ToCreatePredictionResponse(result, nil))
}

func readUpload(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrInvalidInput
		}
		return nil, errors.New("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, imaging.MaxUploadBytes+1))
}

func (h *Handler) GetPrediction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prediction id"})
		return
	}

	detail, err := h.recordSvc.GetPrediction(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictionWithArtifacts(detail))
}

func (h *Handler) ListPatientPredictions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	history, err := h.recordSvc.PatientPredictions(c.Request.Context(), c.Param("external_ref"), ports.ListFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPatientWithPredictions(history, limit, offset))
}

func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.recordSvc.Statistics(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("statistics failed")
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
