package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nixlim/growwatch/internal/alerts"
)

var (
	// Engine metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growwatch_readings_total",
			Help: "Total number of sensor readings pushed into the engine",
		},
		[]string{"dimension"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growwatch_alerts_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"rule"},
	)

	AnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growwatch_anomalies_total",
			Help: "Total number of out-of-order readings",
		},
	)

	OpenSituations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "growwatch_open_situations",
			Help: "Number of rules currently matching",
		},
	)

	PushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "growwatch_push_duration_seconds",
			Help:    "Time taken to evaluate one reading, including listener delivery",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// Remote source metrics
	RemoteFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growwatch_remote_fetch_total",
			Help: "Total number of remote log fetch attempts",
		},
		[]string{"status"}, // status: success, retry, failed, open
	)

	// Sink metrics
	SinkPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growwatch_sink_publish_total",
			Help: "Total number of notifications published to Kafka",
		},
		[]string{"status"}, // status: success, failed, dropped
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Observe is an engine listener that counts alerts and anomalies.
func Observe(n alerts.Notification) {
	switch n.Kind {
	case alerts.KindAlert:
		AlertsTotal.WithLabelValues(n.Alert.Rule).Inc()
	case alerts.KindAnomaly:
		AnomaliesTotal.Inc()
	}
}
