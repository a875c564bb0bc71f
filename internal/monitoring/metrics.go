package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	BetsPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebull_bets_placed_total",
			Help: "Total accepted bets",
		},
	)

	RoundsSettled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebull_rounds_settled_total",
			Help: "Total settled rounds",
		},
	)

	PayoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebull_payouts_total",
			Help: "Total credited payout units",
		},
	)
)

func Init() {
	prometheus.MustRegister(BetsPlaced)
	prometheus.MustRegister(RoundsSettled)
	prometheus.MustRegister(PayoutsTotal)
}
