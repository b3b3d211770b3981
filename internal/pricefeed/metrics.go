package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predmarket_pricefeed_clients_connected",
		Help: "Current number of websocket price feed subscribers",
	})

	SnapshotsBroadcastTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_pricefeed_snapshots_broadcast_total",
		Help: "Total price snapshots broadcast to subscribers",
	})
)
