package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	eventsIngestedTotal    *prometheus.CounterVec
	streamSubscribersGauge prometheus.Gauge
	streamDropsTotal       prometheus.Counter
	tickLatencySeconds     prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulseboard_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		eventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_activity_events_total",
			Help: "Total number of activity events ingested, by action.",
		}, []string{"action"})

		streamSubscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulseboard_stream_subscribers",
			Help: "Number of live activity feed subscribers.",
		})

		streamDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_stream_delivery_failures_total",
			Help: "Subscribers dropped after a failed delivery.",
		})

		tickLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulseboard_snapshot_tick_seconds",
			Help:    "Latency of periodic snapshot recomputation.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			eventsIngestedTotal,
			streamSubscribersGauge,
			streamDropsTotal,
			tickLatencySeconds,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EventsIngested exposes the per-action ingest counter.
func EventsIngested() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsIngestedTotal
}

// StreamSubscribers exposes the live subscriber gauge.
func StreamSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return streamSubscribersGauge
}

// StreamDeliveryFailures exposes the dropped-subscriber counter.
func StreamDeliveryFailures() prometheus.Counter {
	RegisterMetrics()
	return streamDropsTotal
}

// SnapshotTickLatency exposes the snapshot recompute histogram.
func SnapshotTickLatency() prometheus.Histogram {
	RegisterMetrics()
	return tickLatencySeconds
}
