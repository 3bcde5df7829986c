package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Total number of ingestion runs by outcome",
		},
		[]string{"chain", "result"},
	)

	ingestionEventsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_events_stored_total",
			Help: "Total number of transfer events upserted",
		},
		[]string{"chain"},
	)

	ingestionTransactionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_transactions_skipped_total",
			Help: "Transactions skipped because their detail fetch or decode failed",
		},
		[]string{"chain"},
	)

	ingestionRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs that contacted the chain",
			Buckets: []float64{.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"chain"},
	)

	resolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_resolver_lookups_total",
			Help: "Token metadata lookups by the layer that answered",
		},
		[]string{"source"},
	)
)
