// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SwapsAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_agent_swaps_attempted_total",
		Help: "Swap workflows that reached the orchestrator",
	})
	SwapsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_agent_swaps_confirmed_total",
		Help: "Swaps confirmed on-chain",
	})
	SwapsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_agent_swaps_failed_total",
		Help: "Trade workflows that failed, by stage",
	}, []string{"stage"})
	ApprovalsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_agent_approvals_sent_total",
		Help: "Token approvals broadcast before a swap",
	})
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swap_agent_stage_duration_seconds",
		Help:    "Time spent in each swap stage",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 30, 60, 120, 300},
	}, []string{"stage"})
	BalanceReadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_agent_balance_read_errors_total",
		Help: "Balances recorded as Error, by asset symbol",
	}, []string{"symbol"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_agent_notification_failures_total",
		Help: "Notification deliveries that failed or were dropped, by sink",
	}, []string{"sink"})
	ObservedVolatility = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swap_agent_observed_volatility",
		Help: "Last observed daily volatility used for sizing, by price id",
	}, []string{"asset"})
)

func init() {
	prometheus.MustRegister(
		SwapsAttempted, SwapsConfirmed, SwapsFailed, ApprovalsSent, StageDuration,
		BalanceReadErrors, NotificationFailures, ObservedVolatility,
	)
}
