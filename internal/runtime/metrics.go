package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type runtimeMetrics struct {
	operations   *prometheus.CounterVec
	weight       prometheus.Counter
	events       *prometheus.CounterVec
	postsStored  prometheus.Counter
	postsDropped *prometheus.CounterVec
	dispatchTime prometheus.Histogram
}

func (m *runtimeMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.operations = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "shardboard_runtime_operations_total",
		Help: "operations dispatched, by kind and result",
	}, []string{"kind", "result"})
	m.weight = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "shardboard_runtime_weight_total",
		Help: "total weight charged for dispatched operations",
	})
	m.events = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "shardboard_runtime_events_total",
		Help: "events emitted by committed operations",
	}, []string{"name"})
	m.postsStored = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "shardboard_posts_stored_total",
		Help: "posts promoted from the buffer into a thread",
	})
	m.postsDropped = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "shardboard_posts_rejected_total",
		Help: "buffered posts discarded at finalization, by reason",
	}, []string{"reason"})
	m.dispatchTime = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "shardboard_runtime_dispatch_seconds",
		Help:    "time to dispatch and commit one operation",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
	})
}
