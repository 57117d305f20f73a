package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tracks the number of outbound API calls to ShowAds.
	ShowAdsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showads_api_requests_total",
			Help: "Total number of ShowAds API requests made (by endpoint and status).",
		},
		[]string{"endpoint", "status"},
	)

	// Measures duration of API requests to ShowAds.
	ShowAdsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showads_api_request_duration_seconds",
			Help:    "Duration of ShowAds API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	CustomersSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "showads_customers_sent_total",
			Help: "Number of customer records confirmed delivered to ShowAds.",
		},
	)

	CustomersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showads_customers_rejected_total",
			Help: "Number of source rows dropped before dispatch (by reason).",
		},
		[]string{"reason"},
	)

	TokenRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "showads_token_refreshes_total",
			Help: "Number of access token refreshes performed.",
		},
	)

	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Number of NATS publish failures",
		},
		[]string{"subject"},
	)
)

// ObserveDuration records the time taken since start and updates the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncShowAdsRequest(endpoint, status string) {
	ShowAdsRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func AddCustomersSent(n int) {
	CustomersSentTotal.Add(float64(n))
}

func IncCustomersRejected(reason string) {
	CustomersRejectedTotal.WithLabelValues(reason).Inc()
}

func IncTokenRefresh() {
	TokenRefreshesTotal.Inc()
}

func IncNATSPublishError(subject string) {
	NATSPublishErrors.WithLabelValues(subject).Inc()
}

func StartServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(addr, nil) //nolint:errcheck
	}()
}
