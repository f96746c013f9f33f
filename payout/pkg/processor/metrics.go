package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "punto_payout_transfers_submitted_total",
			Help: "Total number of USDC transfers broadcast",
		},
	)

	transfersConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "punto_payout_transfers_confirmed_total",
			Help: "Total number of USDC transfers confirmed and recorded",
		},
	)

	transfersRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "punto_payout_transfers_rejected_total",
			Help: "Total number of USDC transfers rejected by the chain",
		},
	)

	stepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "punto_payout_step_duration_seconds",
			Help:    "Duration of one payout step from submit to recorded",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4m
		},
	)
)
