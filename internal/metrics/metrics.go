package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CastsTotal counts cast workflow runs by kind (single, thread) and outcome
	CastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cast_bridge",
			Subsystem: "casts",
			Name:      "workflows_total",
			Help:      "Total cast workflow runs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// PostsTotal counts individual posting API calls
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cast_bridge",
			Subsystem: "casts",
			Name:      "posts_total",
			Help:      "Total Farcaster post attempts",
		},
		[]string{"status"},
	)

	PostDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cast_bridge",
			Subsystem: "casts",
			Name:      "post_duration_seconds",
			Help:      "Farcaster posting API latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// ChargesTotal counts on-chain charges by status
	ChargesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cast_bridge",
			Subsystem: "payments",
			Name:      "charges_total",
			Help:      "Total USDC transferFrom charges",
		},
		[]string{"status"},
	)

	ChargedUSDC = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cast_bridge",
			Subsystem: "payments",
			Name:      "charged_usdc_total",
			Help:      "Total USDC charged for casts",
		},
	)

	// RateLimitWaitSeconds observes suspensions imposed by the tweet API limiter
	RateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cast_bridge",
			Subsystem: "twitter",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time callers were suspended by the tweet API rate limiter",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	BalanceSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cast_bridge",
			Subsystem: "jobs",
			Name:      "balance_sync_total",
			Help:      "Total cached balance refreshes by status",
		},
		[]string{"status"},
	)
)

// RecordCast records the outcome of a cast workflow
func RecordCast(kind, outcome string) {
	CastsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPost records one posting API call
func RecordPost(success bool, duration time.Duration) {
	PostsTotal.WithLabelValues(statusLabel(success)).Inc()
	PostDuration.Observe(duration.Seconds())
}

// RecordCharge records one on-chain charge
func RecordCharge(success bool, amount float64) {
	ChargesTotal.WithLabelValues(statusLabel(success)).Inc()
	if success {
		ChargedUSDC.Add(amount)
	}
}

// RecordRateLimitWait records a limiter suspension
func RecordRateLimitWait(wait time.Duration) {
	RateLimitWaitSeconds.Observe(wait.Seconds())
}

// RecordBalanceSync records one balance refresh
func RecordBalanceSync(success bool) {
	BalanceSyncTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
