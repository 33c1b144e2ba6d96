package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(accrualRunsTotal, accrualPayoutTotal, ordersCompletedTotal)
}

var accrualRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_accrual_runs_total",
		Help: "Accrual passes executed, labeled by pool and outcome.",
	},
	[]string{"pool", "outcome"}, // 'credited', 'noop', 'failed'
)

var accrualPayoutTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_accrual_payout_total",
		Help: "Sum of amounts credited by accrual passes per pool.",
	},
	[]string{"pool"},
)

var ordersCompletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_orders_completed_total",
		Help: "Orders whose contract finished during an accrual pass, per pool.",
	},
	[]string{"pool"},
)

func IncAccrualRun(pool, outcome string) {
	accrualRunsTotal.WithLabelValues(pool, outcome).Inc()
}

func AddAccrualPayout(pool string, amount float64) {
	accrualPayoutTotal.WithLabelValues(pool).Add(amount)
}

func AddOrdersCompleted(pool string, n int) {
	ordersCompletedTotal.WithLabelValues(pool).Add(float64(n))
}
