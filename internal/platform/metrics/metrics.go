package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the reporting workflow.
type Metrics struct {
	ReportsSubmitted prometheus.Counter
	CasesApproved    prometheus.Counter
	CasesRejected    prometheus.Counter
	CasesCompleted   prometheus.Counter
	PointsAwarded    prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on a caller-supplied registry. Tests
// use this to avoid duplicate registration on the process-global default.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReportsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanitrack_reports_submitted_total",
			Help: "Total number of reports submitted by citizens",
		}),
		CasesApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanitrack_cases_approved_total",
			Help: "Total number of cases approved by admins",
		}),
		CasesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanitrack_cases_rejected_total",
			Help: "Total number of cases rejected by admins",
		}),
		CasesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanitrack_cases_completed_total",
			Help: "Total number of cases completed by enforcement officers",
		}),
		PointsAwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanitrack_incentive_points_awarded_total",
			Help: "Total incentive points awarded to citizens",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sanitrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
