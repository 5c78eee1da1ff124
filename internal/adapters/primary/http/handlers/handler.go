package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"scan-prediction-service/internal/core/services"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	predictionSvc *services.PredictionService
	recordSvc     *services.RecordService
	registrySvc   *services.ModelRegistryService
	sweeper       *services.ArtifactSweeper
	db            Pinger
}

// New builds the handler set. db may be nil when the store has nothing to ping.
func New(
	predictionSvc *services.PredictionService,
	recordSvc *services.RecordService,
	registrySvc *services.ModelRegistryService,
	sweeper *services.ArtifactSweeper,
	db Pinger,
) *Handler {
	return &Handler{
		predictionSvc: predictionSvc,
		recordSvc:     recordSvc,
		registrySvc:   registrySvc,
		sweeper:       sweeper,
		db:            db,
	}
}

// RegisterRoutes mounts the API under r. predictMiddleware wraps only the
// prediction upload.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, predictMiddleware ...gin.HandlerFunc) {
	// Predictions
	r.POST("/predictions", append(predictMiddleware, h.CreatePrediction)...)
	r.GET("/predictions/:id", h.GetPrediction)
	r.GET("/patients/:external_ref/predictions", h.ListPatientPredictions)
	r.GET("/statistics", h.GetStatistics)

	// Registered Models
	r.GET("/models", h.ListModels)
	r.GET("/models/:id", h.GetModel)
	r.POST("/models", h.RegisterModel)
	r.POST("/models/:id/reload", h.ReloadModel)

	// Audit
	r.GET("/audit_events", h.ListAuditEvents)

	// Artifacts
	r.POST("/artifacts/sweep", h.SweepArtifacts)
}

// RegisterHealthRoutes mounts the unversioned health endpoints.
func (h *Handler) RegisterHealthRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.Healthz)
	r.GET("/health/models", h.ModelHealth)
}
