package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scan-prediction-service/internal/core/domain"
)

func statusFor(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrPatientNotFound),
		errors.Is(err, domain.ErrPredictionNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrModelNameConflict):
		return http.StatusConflict

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrMissingExternalRef),
		errors.Is(err, domain.ErrInvalidExternalRef),
		errors.Is(err, domain.ErrInvalidModelType),
		errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrInvalidArch),
		errors.Is(err, domain.ErrInvalidMethod),
		errors.Is(err, domain.ErrInvalidEventKind):
		return http.StatusBadRequest

	// Scoring errors
	case errors.Is(err, domain.ErrInferenceTimeout),
		errors.Is(err, domain.ErrInferenceFailure):
		return http.StatusUnprocessableEntity

	// Service unavailable errors
	case errors.Is(err, domain.ErrModelLoad):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func mapDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
