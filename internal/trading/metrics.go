package trading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal tracks trades by side and result.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predmarket_trades_total",
			Help: "Total number of trades by side and result",
		},
		[]string{"side", "result"},
	)

	// TradeDuration tracks the end-to-end trade sequence latency.
	TradeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predmarket_trade_duration_seconds",
		Help:    "Duration of the full trade sequence including confirmation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// TradesHaltedTotal counts trades rejected while the breaker was open.
	TradesHaltedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_trades_halted_total",
		Help: "Total number of trades rejected by the collateral breaker",
	})
)
