package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dsmr"

// Stats is process metrics. Zero value is not usable, use NewStats.
type Stats struct {
	Telegrams    prometheus.Counter
	Published    prometheus.Counter
	Failures     *prometheus.CounterVec
	Restarts     prometheus.Counter
	LastTelegram prometheus.Gauge
	SerialBytes  prometheus.Counter
	LogErrors    prometheus.Counter
}

// NewStats registers metrics in reg, nil reg leaves them unregistered.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		Telegrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "telegrams_total",
			Help:      "Telegrams decoded successfully.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted by broker.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "run_failures_total",
			Help:      "Pipeline runs ended by error, by error kind.",
		}, []string{"kind"}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "restarts_total",
			Help:      "Pipeline restarts after backoff.",
		}),
		LastTelegram: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_telegram_timestamp_seconds",
			Help:      "Unix time of last decoded telegram.",
		}),
		SerialBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "serial_read_bytes_total",
			Help:      "Bytes read from serial port.",
		}),
		LogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "log_errors_total",
			Help:      "Errors written to log.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Telegrams, s.Published, s.Failures, s.Restarts, s.LastTelegram, s.SerialBytes, s.LogErrors)
	}
	return s
}
