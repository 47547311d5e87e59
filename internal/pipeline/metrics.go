package pipeline

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeAlert     = "alert_persisted"
	outcomeDiscarded = "discarded"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"
	outcomeDropped   = "dropped"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_total",
			Help: "Image events by terminal outcome",
		},
		[]string{"outcome"},
	)

	classifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_classify_duration_seconds",
			Help:    "Classification call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Events waiting for a worker",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, classifyDuration, queueDepth)
}
