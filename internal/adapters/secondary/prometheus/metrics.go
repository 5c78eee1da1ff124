package prometheus

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

const namespace = "scan_prediction"

// Metrics implements ports.PipelineMetrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	predictionsTotal   *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	scoringDuration    *prometheus.HistogramVec
	scoringFailures    *prometheus.CounterVec
	modelLoaded        *prometheus.GaugeVec
	artifactsSwept     prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		predictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of persisted predictions",
			},
			[]string{"architecture", "status", "risk_level"},
		),
		predictionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "End-to-end prediction pipeline duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"architecture"},
		),
		scoringDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scoring_duration_seconds",
				Help:      "Duration of individual scoring calls in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"architecture", "call"},
		),
		scoringFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scoring_failures_total",
				Help:      "Total number of failed or timed out scoring calls",
			},
			[]string{"architecture", "call", "reason"},
		),
		modelLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_loaded",
				Help:      "Whether a scoring handle is loaded for the architecture (1=loaded)",
			},
			[]string{"architecture"},
		),
		artifactsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_swept_total",
				Help:      "Total number of expired explainability artifacts deleted",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) ObservePrediction(arch domain.Architecture, status domain.PredictionStatus, risk domain.RiskLevel, elapsed time.Duration) {
	m.predictionsTotal.WithLabelValues(string(arch), string(status), string(risk)).Inc()
	m.predictionDuration.WithLabelValues(string(arch)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveScoring(arch domain.Architecture, call string, elapsed time.Duration, err error) {
	m.scoringDuration.WithLabelValues(string(arch), call).Observe(elapsed.Seconds())
	if err != nil {
		m.scoringFailures.WithLabelValues(string(arch), call, failureReason(err)).Inc()
	}
}

func (m *Metrics) SetModelLoaded(arch domain.Architecture, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.modelLoaded.WithLabelValues(string(arch)).Set(v)
}

func (m *Metrics) AddArtifactsSwept(n int) {
	m.artifactsSwept.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the matched route
// template, so path parameters never become label values.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func failureReason(err error) string {
	if errors.Is(err, domain.ErrInferenceTimeout) {
		return "timeout"
	}
	return "error"
}

var _ ports.PipelineMetrics = (*Metrics)(nil)
