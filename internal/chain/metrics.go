package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerCallsTotal tracks successful ledger calls by contract, method and mode.
	LedgerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predmarket_ledger_calls_total",
			Help: "Total number of successful ledger calls",
		},
		[]string{"contract", "method", "mode"},
	)

	// LedgerCallErrorsTotal tracks failed ledger calls by contract and method.
	LedgerCallErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predmarket_ledger_call_errors_total",
			Help: "Total number of failed ledger calls",
		},
		[]string{"contract", "method"},
	)

	// SequencingRetriesTotal tracks single-shot retries after nonce conflicts.
	SequencingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predmarket_sequencing_retries_total",
		Help: "Total number of mutating calls retried after a sequencing conflict",
	})

	// LedgerCallDuration tracks call latency by mode.
	LedgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predmarket_ledger_call_duration_seconds",
			Help:    "Duration of ledger calls including confirmation wait",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)
)
