package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueLength, progressUpdatesTotal, callbackPanicsTotal) }

var queueLength = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "generation_queue_length",
		Help: "Number of jobs currently waiting in the queue.",
	},
)

var progressUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_progress_updates_total",
		Help: "Parsed progress updates from the generator stream, by match tier.",
	},
	[]string{"tier"}, // 'rich', 'bare'
)

var callbackPanicsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_observer_panics_total",
		Help: "Observer callbacks that panicked and were isolated.",
	},
)

func SetQueueLength(n int) { queueLength.Set(float64(n)) }

func IncProgressUpdate(tier string) {
	progressUpdatesTotal.WithLabelValues(norm(tier)).Inc()
}

func IncCallbackPanic() { callbackPanicsTotal.Inc() }
