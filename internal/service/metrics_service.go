package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matriculapp/enrollment-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the enrollment domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	reviewTotal     *prometheus.CounterVec
	stageTotal      *prometheus.CounterVec
	notifyTotal     *prometheus.CounterVec
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

	reviewTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_reviews_total",
		Help: "Review decisions by submission kind and outcome",
	}, []string{"kind", "outcome"})

	stageTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_transitions_total",
		Help: "Enrollment stage transitions by from/to stage and override flag",
	}, []string{"from", "to", "overridden"})

	notifyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications dispatched by type",
	}, []string{"type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, reviewTotal, stageTotal, notifyTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		reviewTotal:     reviewTotal,
		stageTotal:      stageTotal,
		notifyTotal:     notifyTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveReview records a review decision.
func (m *MetricsService) ObserveReview(kind models.SubmissionKind, outcome models.ReviewStatus) {
	if m == nil {
		return
	}
	m.reviewTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

// ObserveStageTransition records a stage machine transition.
func (m *MetricsService) ObserveStageTransition(from, to models.EnrollmentStage, overridden bool) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(string(from), string(to), fmt.Sprintf("%t", overridden)).Inc()
}

// ObserveNotification records a dispatched notification.
func (m *MetricsService) ObserveNotification(kind models.NotificationType) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(string(kind)).Inc()
}
