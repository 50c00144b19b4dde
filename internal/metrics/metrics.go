// Package metrics 进程级 prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CodesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_codes_issued_total",
		Help: "Referral codes written to the ledger, by kind (create, regenerate) and rarity tier.",
	}, []string{"kind", "tier"})

	ReferralsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_events_recorded_total",
		Help: "Referral events committed, by whether a special code was used.",
	}, []string{"special"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_validation_failures_total",
		Help: "Business-rule rejections by error code.",
	}, []string{"code"})

	SignalUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_signal_unavailable_total",
		Help: "Oracle or ledger signals that degraded to zero, by signal.",
	}, []string{"signal"})

	LeaderboardRefreshSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaderboard_refresh_duration_seconds",
		Help:    "Wall time of a full leaderboard cache refresh.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	LeaderboardEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaderboard_cache_entries",
		Help: "Entries written by the last completed refresh.",
	})

	SnapshotBalancesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daily_snapshot_balances_recorded_total",
		Help: "Balance rows written by daily snapshots.",
	})
)
