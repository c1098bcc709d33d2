package host

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors shared by a Registry and its
// Scheduler.
type Metrics struct {
	sessionsOpen   prometheus.Gauge
	messagesSent   *prometheus.CounterVec
	messagesFailed *prometheus.CounterVec
	tasksRun       prometheus.Counter
	tasksPending   prometheus.Gauge
	tickDuration   prometheus.Histogram
}

// NewMetrics registers the host collectors with reg. A nil reg keeps them
// on a private registry, which is what tests and embedders without a
// metrics endpoint want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		sessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bedrock_host_sessions_open",
			Help: "Number of computer sessions held by the host",
		}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_host_messages_sent_total",
			Help: "Messages handed to the broadcaster",
		}, []string{"kind"}),
		messagesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_host_messages_failed_total",
			Help: "Messages the broadcaster failed to deliver",
		}, []string{"kind"}),
		tasksRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "bedrock_scheduler_tasks_run_total",
			Help: "Queued tasks run by the scheduler",
		}),
		tasksPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bedrock_scheduler_tasks_pending",
			Help: "Queued tasks waiting for a tick",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bedrock_scheduler_tick_duration_seconds",
			Help:    "Time spent in each scheduler tick",
			Buckets: []float64{.001, .005, .01, .02, .03, .05, .1, .25},
		}),
	}
}
