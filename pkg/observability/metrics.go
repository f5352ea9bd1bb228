package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Verification flow metrics
	VerificationsStarted   prometheus.Counter
	VerificationsCompleted prometheus.Counter
	VerificationsFailed    *prometheus.CounterVec

	// Completion queue metrics
	CompletionQueueDepth prometheus.Gauge

	// Role reconciliation metrics
	RolesCreated prometheus.Counter
	RolesDeleted prometheus.Counter
	RolesHealed  prometheus.Counter

	// Store metrics
	StoreOperationsTotal *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		VerificationsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_verifications_started_total",
				Help: "Total number of verification attempts started",
			},
		),
		VerificationsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_verifications_completed_total",
				Help: "Total number of verifications completed successfully",
			},
		),
		VerificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_verifications_failed_total",
				Help: "Total number of failed verification attempts by reason",
			},
			[]string{"reason"},
		),
		CompletionQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rolegate_completion_queue_depth",
				Help: "Number of completion events waiting to be processed",
			},
		),
		RolesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_roles_created_total",
				Help: "Total number of Discord roles created by the reconciler",
			},
		),
		RolesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_roles_deleted_total",
				Help: "Total number of Discord roles deleted by the reconciler",
			},
		),
		RolesHealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_roles_healed_total",
				Help: "Total number of externally deleted roles recreated by the reconciler",
			},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_store_operations_total",
				Help: "Total number of store operations by type",
			},
			[]string{"operation"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_store_errors_total",
				Help: "Total number of store errors by operation",
			},
			[]string{"operation"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.VerificationsStarted,
		m.VerificationsCompleted,
		m.VerificationsFailed,
		m.CompletionQueueDepth,
		m.RolesCreated,
		m.RolesDeleted,
		m.RolesHealed,
		m.StoreOperationsTotal,
		m.StoreErrorsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
