package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	SubscriptionPaymentsTotal *prometheus.CounterVec
	SubscriptionEventsDropped *prometheus.CounterVec
	PlatformFeesCollected     *prometheus.CounterVec
	CreatorPayoutsTotal       *prometheus.CounterVec
	CreatorPayoutAmount       *prometheus.CounterVec
	PayoutJobsTotal           *prometheus.CounterVec
	PayoutJobDuration         prometheus.Histogram
	ProcessorCallDuration     *prometheus.HistogramVec
}

// Business 未注册前也可以直接使用 (测试环境不暴露 /metrics)
var Business = newBusinessMetrics()

func newBusinessMetrics() *BusinessMetrics {
	return &BusinessMetrics{
		SubscriptionPaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_subscription_payments_total",
			Help: "Subscription payments credited to creator wallets",
		}, []string{"result"}),
		SubscriptionEventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_subscription_events_dropped_total",
			Help: "Subscription payment events acknowledged without crediting",
		}, []string{"reason"}),
		PlatformFeesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_platform_fees_collected_total",
			Help: "Platform fees collected",
		}, []string{"currency"}),
		CreatorPayoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_creator_payouts_total",
			Help: "Per-creator payout attempts",
		}, []string{"method", "result"}),
		CreatorPayoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_creator_payout_amount_total",
			Help: "Amount paid out to creators",
		}, []string{"currency"}),
		PayoutJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_jobs_total",
			Help: "Finalized payout jobs",
		}, []string{"status"}),
		PayoutJobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payout_job_duration_seconds",
			Help:    "Duration of payout job processing",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		}),
		ProcessorCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payout_processor_call_duration_seconds",
			Help:    "Latency of payment processor calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
}

// InitBusinessMetrics 注册业务指标
func InitBusinessMetrics() {
	prometheus.MustRegister(
		Business.SubscriptionPaymentsTotal,
		Business.SubscriptionEventsDropped,
		Business.PlatformFeesCollected,
		Business.CreatorPayoutsTotal,
		Business.CreatorPayoutAmount,
		Business.PayoutJobsTotal,
		Business.PayoutJobDuration,
		Business.ProcessorCallDuration,
	)
}
