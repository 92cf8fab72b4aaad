package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/attendance-engine/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the reconciliation batch.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	reconcileOutcomes *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	reconcileSkipped  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reconcileOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_reconcile_outcomes_total",
		Help: "Reconciliation decisions by outcome",
	}, []string{"outcome"})

	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_reconcile_run_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	reconcileSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_reconcile_skipped_total",
		Help: "Teachers skipped during reconciliation due to persistence errors",
	})

	registry.MustRegister(requestDuration, requestTotal, reconcileOutcomes, reconcileDuration, reconcileSkipped)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		reconcileOutcomes: reconcileOutcomes,
		reconcileDuration: reconcileDuration,
		reconcileSkipped:  reconcileSkipped,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveReconcileDecision records one applied decision outcome.
func (s *MetricsService) ObserveReconcileDecision(action models.ReconcileAction) {
	if s == nil {
		return
	}
	if action == models.ReconcileSkippedError {
		s.reconcileSkipped.Inc()
		return
	}
	s.reconcileOutcomes.WithLabelValues(string(action)).Inc()
}

// ObserveReconcileRun records the duration of a full pass.
func (s *MetricsService) ObserveReconcileRun(duration time.Duration) {
	if s == nil {
		return
	}
	s.reconcileDuration.Observe(duration.Seconds())
}
