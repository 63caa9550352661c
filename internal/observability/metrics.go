package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Poll metrics, labelled by source (metrics, timeline, vulnerabilities)
	PollCyclesTotal          *prometheus.CounterVec
	PollFailuresTotal        *prometheus.CounterVec
	PollDuration             *prometheus.HistogramVec
	PollDiscardedTotal       *prometheus.CounterVec
	PollLastSuccessTimestamp *prometheus.GaugeVec

	// History metrics
	HistoryRecordedTotal prometheus.Counter
	HistoryErrorsTotal   prometheus.Counter

	// Posture metrics
	PostureEvaluations *prometheus.CounterVec

	// API metrics
	StreamClients prometheus.Gauge
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			PollCyclesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "securevision_poll_cycles_total",
					Help: "Total number of completed poll cycles by outcome",
				},
				[]string{"source", "outcome"}, // success, failure
			),
			PollFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "securevision_poll_failures_total",
					Help: "Total number of failed poll cycles by failure kind",
				},
				[]string{"source", "kind"}, // transport, http_status, decode
			),
			PollDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "securevision_poll_duration_seconds",
					Help:    "Duration of poll requests in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
				},
				[]string{"source"},
			),
			PollDiscardedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "securevision_poll_discarded_total",
					Help: "Total number of responses discarded because the poller was stopped",
				},
				[]string{"source"},
			),
			PollLastSuccessTimestamp: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "securevision_poll_last_success_timestamp_seconds",
					Help: "Unix time of the last successfully applied poll",
				},
				[]string{"source"},
			),

			HistoryRecordedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "securevision_history_recorded_total",
				Help: "Total number of snapshots written to the history store",
			}),
			HistoryErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "securevision_history_errors_total",
				Help: "Total number of failed history store writes",
			}),

			PostureEvaluations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "securevision_posture_evaluations_total",
					Help: "Total number of posture policy evaluations by result",
				},
				[]string{"result"}, // passed, failed, error
			),

			StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "securevision_stream_clients",
				Help: "Current number of connected dashboard stream clients",
			}),
		}
	})
	return metricsInstance
}
