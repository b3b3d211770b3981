package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesTotal tracks net-cost quotes served.
	QuotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_pricing_quotes_total",
		Help: "Total number of AMM net-cost quotes",
	})
)
