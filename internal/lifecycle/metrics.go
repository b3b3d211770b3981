package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarketsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_markets_created_total",
		Help: "Total number of markets created, sub-markets excluded",
	})

	MarketsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_markets_resolved_total",
		Help: "Total number of markets resolved",
	})
)
