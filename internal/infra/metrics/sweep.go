package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(sweepDuration, sweepUsersTotal)
}

var sweepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ledger_sweep_duration_seconds",
		Help:    "Wall time of one nightly sweep, per pool.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	},
	[]string{"pool"},
)

var sweepUsersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_sweep_users_total",
		Help: "Users processed by the sweep, labeled by pool and outcome.",
	},
	[]string{"pool", "outcome"}, // 'ok', 'failed'
)

func ObserveSweepDuration(pool string, seconds float64) {
	sweepDuration.WithLabelValues(pool).Observe(seconds)
}

func IncSweepUser(pool, outcome string) {
	sweepUsersTotal.WithLabelValues(pool, outcome).Inc()
}
