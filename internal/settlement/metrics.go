package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "settlement",
		Name:      "settle_total",
		Help:      "Settle task completions by outcome.",
	}, []string{"outcome"})

	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "settlement",
		Name:      "in_flight",
		Help:      "Trades currently running the background settle task.",
	})

	validateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "settlement",
		Name:      "validate_total",
		Help:      "Validate calls by resulting code.",
	}, []string{"code"})
)
