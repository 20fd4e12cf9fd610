package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_transfers_total",
			Help: "Completed and failed credit transfers",
		},
		[]string{"status"}, // completed|failed
	)
	BonusMintedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_bonus_minted_total",
			Help: "Credits minted by the flow multiplier",
		},
	)
	PoolContributionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_pool_contributions_total",
			Help: "Credits skimmed into community pools",
		},
		[]string{"pool"},
	)
	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_pool_votes_total",
			Help: "Votes cast on pool requests",
		},
		[]string{"in_favor"},
	)
	DisbursementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_pool_disbursements_total",
			Help: "Approved pool requests paid out",
		},
	)
	TierPromotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_tier_promotions_total",
			Help: "Economy tier promotions",
		},
		[]string{"to"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(TransfersTotal)
	prometheus.MustRegister(BonusMintedTotal)
	prometheus.MustRegister(PoolContributionsTotal)
	prometheus.MustRegister(VotesTotal)
	prometheus.MustRegister(DisbursementsTotal)
	prometheus.MustRegister(TierPromotionsTotal)
	prometheus.MustRegister(WorkerQueueDepth)
}
