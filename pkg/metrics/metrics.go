package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "sync_runs_total", Help: "Number of sync runs by result."},
		[]string{"result"},
	)
	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "tracksync", Name: "sync_duration_seconds", Help: "Duration of completed sync runs.", Buckets: prometheus.DefBuckets},
	)
	UsersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "users_created_total", Help: "Users created by reconciliation."},
	)
	UsersUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "users_updated_total", Help: "Users updated by reconciliation."},
	)
	UsersDeactivated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "users_deactivated_total", Help: "Users deactivated as remote-absent."},
	)
	UserErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "user_errors_total", Help: "Per-user failures isolated during reconciliation."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tracksync", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SyncRuns, SyncDuration, UsersCreated, UsersUpdated, UsersDeactivated, UserErrors)
	reg.MustRegister(RateLimitAllowed, RateLimitRejected)
}
