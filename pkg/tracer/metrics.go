package tracer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 热路径只动计数器，采集端自取
var (
	metricEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spanflow",
		Name:      "tracelets_emitted_total",
		Help:      "Tracelets successfully enqueued by producers.",
	})

	metricDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spanflow",
		Name:      "tracelets_dropped_total",
		Help:      "Tracelets dropped because the ring was full.",
	})

	metricConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spanflow",
		Name:      "tracelets_consumed_total",
		Help:      "Tracelets drained by the processor.",
	})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spanflow",
		Name:      "ring_depth",
		Help:      "Occupied slots in the ring buffer, sampled by the processor.",
	})
)
