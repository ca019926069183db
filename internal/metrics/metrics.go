package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteRequests counts bookmark page requests by outcome: ok, rate_limited, error.
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmark_sync_remote_requests_total",
			Help: "Total number of remote bookmark page requests",
		},
		[]string{"outcome"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmark_sync_runs_total",
			Help: "Total number of sync runs by mode and terminal status",
		},
		[]string{"mode", "status"},
	)

	RecordsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookmark_sync_records_inserted_total",
			Help: "Total number of content records newly inserted",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmark_sync_records_skipped_total",
			Help: "Total number of content records not inserted, by reason",
		},
		[]string{"reason"}, // "duplicate", "error", "cutoff"
	)

	ClassificationHandoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmark_sync_classification_handoffs_total",
			Help: "Total number of classification batches handed off, by result",
		},
		[]string{"result"},
	)
)
