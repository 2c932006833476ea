package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "reconciler",
		Name:      "block_lag",
		Help:      "Blocks between the reorg-safe chain tip and this reconciler's last processed block.",
	}, []string{"contract"})

	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "reconciler",
		Name:      "events_processed_total",
		Help:      "Chain events routed to a handler, by event name.",
	}, []string{"contract", "event"})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "reconciler",
		Name:      "handler_errors_total",
		Help:      "Handler invocations that returned an error, by event name.",
	}, []string{"contract", "event"})
)
