package prometheus

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-prediction-service/internal/core/domain"
)

func TestMetrics_Pipeline(t *testing.T) {
	m := NewMetrics()
	arch := domain.ArchBinaryClassifier

	m.ObservePrediction(arch, domain.StatusSuccess, domain.RiskHigh, 120*time.Millisecond)
	m.ObservePrediction(arch, domain.StatusSuccess, domain.RiskHigh, 80*time.Millisecond)
	m.ObserveScoring(arch, "binary", time.Second, fmt.Errorf("score: %w", domain.ErrInferenceTimeout))
	m.ObserveScoring(arch, "stage", time.Millisecond, errors.New("boom"))
	m.ObserveScoring(arch, "stage", time.Millisecond, nil)
	m.SetModelLoaded(arch, true)
	m.SetModelLoaded(domain.ArchVisionTransformer, false)
	m.AddArtifactsSwept(3)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.predictionsTotal.WithLabelValues(string(arch), "SUCCESS", "HIGH")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.scoringFailures.WithLabelValues(string(arch), "binary", "timeout")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.scoringFailures.WithLabelValues(string(arch), "stage", "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.modelLoaded.WithLabelValues(string(arch))))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.modelLoaded.WithLabelValues(string(domain.ArchVisionTransformer))))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.artifactsSwept))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/predictions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/predictions/1", "/predictions/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/predictions/:id", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scan_prediction_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
