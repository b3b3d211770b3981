package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	BreakerAllowed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_breaker_allowed",
		Help: "Whether the collateral breaker allows trade submission (1=allowed, 0=halted)",
	})

	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_breaker_balance",
		Help: "Last checked operator collateral balance in decimal units",
	})

	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_breaker_disable_threshold",
		Help: "Balance below which trade submission halts",
	})

	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_breaker_enable_threshold",
		Help: "Balance above which trade submission resumes",
	})

	BreakerAvgTradeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_breaker_avg_trade_size",
		Help: "Rolling average collateral size of recent trades",
	})

	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_breaker_state_changes_total",
		Help: "Total number of breaker state transitions",
	})

	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predmarket_breaker_check_duration_seconds",
		Help:    "Time taken to read the operator collateral balance",
		Buckets: prometheus.DefBuckets,
	})
)
