package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentnest_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentnest_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	applicationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentnest_applications_created_total",
		Help: "Count of rental applications submitted",
	})

	applicationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentnest_application_decisions_total",
		Help: "Count of application decisions by outcome",
	}, []string{"status", "auto"})

	approvalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentnest_approval_transaction_duration_seconds",
		Help:    "Duration of allocation transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	sweeperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentnest_sweeper_runs_total",
		Help: "Count of expiry sweeper runs by result",
	}, []string{"result"})

	sweeperExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentnest_sweeper_expired_applications_total",
		Help: "Count of applications transitioned to expired by the sweeper",
	})

	repairOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentnest_repair_operations_total",
		Help: "Count of per-property consistency repairs by result",
	}, []string{"result"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentnest_notifications_total",
		Help: "Count of notification dispatch attempts by result",
	}, []string{"event", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ApplicationCreated records a submitted application
func ApplicationCreated() {
	applicationsCreated.Inc()
}

// ApplicationDecided records a decision outcome
func ApplicationDecided(status string, auto bool) {
	label := "false"
	if auto {
		label = "true"
	}
	applicationDecisions.WithLabelValues(status, label).Inc()
}

// ObserveApproval records an allocation transaction attempt
func ObserveApproval(result string, duration time.Duration) {
	approvalDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// SweeperRun records an expiry sweep and the rows it transitioned
func SweeperRun(result string, expired int64) {
	sweeperRuns.WithLabelValues(result).Inc()
	if expired > 0 {
		sweeperExpired.Add(float64(expired))
	}
}

// RepairOperation records a per-property repair outcome
func RepairOperation(result string) {
	repairOperations.WithLabelValues(result).Inc()
}

// NotificationAttempt records a notification dispatch attempt
func NotificationAttempt(event, result string) {
	notifications.WithLabelValues(event, result).Inc()
}
