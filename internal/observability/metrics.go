package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		},
		[]string{"server", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rtctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "method", "path", "status"},
	)
	controlRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtctl",
			Subsystem: "control",
			Name:      "requests_total",
			Help:      "Control API calls issued to runtimes.",
		},
		[]string{"op", "success"},
	)
	controlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rtctl",
			Subsystem: "control",
			Name:      "request_duration_seconds",
			Help:      "Control API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "success"},
	)
	openLogSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rtctl",
			Subsystem: "control",
			Name:      "log_sessions_open",
			Help:      "Log stream sessions currently open.",
		},
	)
	discoveredRuntimes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rtctl",
			Subsystem: "discovery",
			Name:      "runtimes",
			Help:      "Runtimes that answered the last discovery pass.",
		},
	)
	supervisorTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtctl",
			Subsystem: "supervisor",
			Name:      "transitions_total",
			Help:      "Supervisor state transitions.",
		},
		[]string{"state"},
	)
)

// RegisterMetrics registers every collector with the default registry. It is
// safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			controlRequests,
			controlDuration,
			openLogSessions,
			discoveredRuntimes,
			supervisorTransitions,
		)
	})
}

func RecordHTTPRequest(server, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(server, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(server, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordControlCall records one control API call made by a client.
func RecordControlCall(op string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	controlRequests.WithLabelValues(op, successLabel).Inc()
	controlDuration.WithLabelValues(op, successLabel).Observe(duration.Seconds())
}

func LogSessionOpened() {
	RegisterMetrics()
	openLogSessions.Inc()
}

func LogSessionClosed() {
	RegisterMetrics()
	openLogSessions.Dec()
}

func RecordDiscovery(found int) {
	RegisterMetrics()
	discoveredRuntimes.Set(float64(found))
}

func RecordTransition(state string) {
	RegisterMetrics()
	supervisorTransitions.WithLabelValues(state).Inc()
}
