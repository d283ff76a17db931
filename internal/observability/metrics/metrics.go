// Package metrics provides Prometheus instrumentation for donationwatch.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Donation intake metrics
	donationCreateTotal *prometheus.CounterVec

	// Verification metrics
	verificationTotal     *prometheus.CounterVec
	resolverFailuresTotal *prometheus.CounterVec
	scanPendingDonations  prometheus.Gauge

	// Price backfill metrics
	backfillItemsTotal *prometheus.CounterVec

	// Notification metrics
	notificationFailuresTotal prometheus.Counter
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	donationCreateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_create_total",
			Help: "Total number of donation records created",
		},
		[]string{"network", "status"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_verification_total",
			Help: "Total number of verification attempts by result",
		},
		[]string{"result"},
	)

	resolverFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_failures_total",
			Help: "Total number of typed resolver failures by network and kind",
		},
		[]string{"network", "kind"},
	)

	scanPendingDonations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_pending_donations",
			Help: "Number of pending donations seen by the last scan",
		},
	)

	backfillItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_backfill_items_total",
			Help: "Total number of donations processed by the price backfill",
		},
		[]string{"status"},
	)

	notificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total number of failed settlement notifications",
		},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// RecordDonationCreate records a donation intake attempt.
func RecordDonationCreate(networkID int, status string) {
	if !enabled {
		return
	}
	donationCreateTotal.WithLabelValues(strconv.Itoa(networkID), status).Inc()
}

// RecordVerification records one verification attempt result.
func RecordVerification(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

// RecordResolverFailure records a typed resolver failure.
func RecordResolverFailure(networkID int, kind string) {
	if !enabled {
		return
	}
	resolverFailuresTotal.WithLabelValues(strconv.Itoa(networkID), kind).Inc()
}

// RecordScanPending records the pending backlog seen by a scan.
func RecordScanPending(n int) {
	if !enabled {
		return
	}
	scanPendingDonations.Set(float64(n))
}

// RecordBackfillItem records one backfill item outcome.
func RecordBackfillItem(status string) {
	if !enabled {
		return
	}
	backfillItemsTotal.WithLabelValues(status).Inc()
}

// RecordNotificationFailure records a failed settlement notification.
func RecordNotificationFailure() {
	if !enabled {
		return
	}
	notificationFailuresTotal.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
