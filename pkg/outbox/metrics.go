package outbox

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "registry"
	metricsSubsystem = "outbox"
)

type metrics struct {
	enqueueTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	deadTotal       *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	pending         *prometheus.GaugeVec
	locked          *prometheus.GaugeVec
	relayLeader     *prometheus.GaugeVec
}

var getMetrics = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "enqueue_total",
			Help:      "Messages written to the outbox.",
		}, []string{"table", "topic"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by result.",
		}, []string{"table", "topic", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dead_total",
			Help:      "Messages that exhausted their attempts.",
		}, []string{"table", "topic"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dispatch_latency_seconds",
			Help:      "Dispatch latency by result.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"table", "topic", "result"}),
		pending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pending",
			Help:      "Unpublished messages.",
		}, []string{"table"}),
		locked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "locked",
			Help:      "Unpublished messages currently claimed by a relay.",
		}, []string{"table"}),
		relayLeader: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "relay_leader",
			Help:      "1 while this process holds the relay lock of the table.",
		}, []string{"table"}),
	}
})

func (m *metrics) enqueued(table, topic string) {
	m.enqueueTotal.WithLabelValues(table, topic).Inc()
}

func (m *metrics) dispatched(table, topic string, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.dispatchTotal.WithLabelValues(table, topic, result).Inc()
	m.dispatchLatency.WithLabelValues(table, topic, result).Observe(took.Seconds())
}

func (m *metrics) deadLettered(table, topic string) {
	m.deadTotal.WithLabelValues(table, topic).Inc()
}

func (m *metrics) depth(table string, pending, locked int64) {
	m.pending.WithLabelValues(table).Set(float64(pending))
	m.locked.WithLabelValues(table).Set(float64(locked))
}

func (m *metrics) leader(table string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	m.relayLeader.WithLabelValues(table).Set(v)
}
