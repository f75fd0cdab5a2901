package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EpochsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardano_epochs_synced_total",
			Help: "The total number of epoch records created",
		},
	)

	LastSyncedEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardano_last_synced_epoch",
			Help: "The latest epoch number known to the registry",
		},
	)

	AccountHistoryRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardano_account_history_rows_total",
			Help: "The total number of account history rows written, by outcome",
		},
		[]string{"status"},
	)

	// WithdrawableClampTotal counts history rows where the computed
	// withdrawable went negative and was clamped. A steadily rising value
	// points at gaps in the upstream reward feed.
	WithdrawableClampTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardano_withdrawable_clamp_total",
			Help: "The total number of account history rows where the withdrawable clamp was applied",
		},
	)

	RewardRevisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardano_reward_revisions_total",
			Help: "The total number of pool history revision attempts, by outcome",
		},
		[]string{"status"},
	)

	IntegrityRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardano_integrity_repairs_total",
			Help: "The total number of accounts purged and resynced by the integrity checker",
		},
	)

	SyncPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardano_sync_pass_duration_seconds",
			Help:    "Duration of a full reconciliation pass in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SyncPassErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardano_sync_pass_errors_total",
			Help: "The total number of sync steps aborted by upstream failures",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardano_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockfrost_request_duration_seconds",
			Help:    "Duration of Blockfrost API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpstreamRequestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockfrost_request_errors_total",
			Help: "The total number of Blockfrost API request errors",
		},
	)

	DatabaseConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections",
			Help: "Number of database connections",
		},
		[]string{"state"},
	)
)

func RecordHistoryRow(status string) {
	AccountHistoryRows.WithLabelValues(status).Inc()
}

func RecordRevision(status string) {
	RewardRevisions.WithLabelValues(status).Inc()
}

func RecordUpstreamRequest(duration float64, success bool) {
	UpstreamRequestDuration.Observe(duration)
	if !success {
		UpstreamRequestErrors.Inc()
	}
}

func UpdateLastSyncedEpoch(epoch int32) {
	LastSyncedEpoch.Set(float64(epoch))
}

func UpdateDatabaseConnections(active, idle int) {
	DatabaseConnections.WithLabelValues("active").Set(float64(active))
	DatabaseConnections.WithLabelValues("idle").Set(float64(idle))
}
