// Package metrics exposes Prometheus counters for the copy-trade pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copytrader_webhook_events_total",
			Help: "Inbound webhook events by outcome",
		},
		[]string{"outcome"}, // created, duplicate, ignored, error
	)

	signalsScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copytrader_signals_scored_total",
			Help: "Signals scored by resulting status",
		},
		[]string{"status"},
	)

	signalScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "copytrader_signal_score",
			Help:    "Distribution of risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	preparedTradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copytrader_prepared_trades_total",
			Help: "Orchestrator runs by outcome",
		},
		[]string{"outcome"}, // prepared, skipped
	)

	executedTradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copytrader_executed_trades_total",
			Help: "Recorded trades by status",
		},
		[]string{"status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copytrader_upstream_duration_seconds",
			Help:    "Latency of calls to external providers",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "outcome"},
	)

	monitorTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "copytrader_monitor_ticks_total",
			Help: "Take-profit monitor ticks",
		},
	)

	takeProfitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copytrader_take_profit_total",
			Help: "Take-profit order transitions by status",
		},
		[]string{"status"},
	)
)

// RecordWebhookEvent counts one inbound event
func RecordWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordSignalScored counts a scoring run
func RecordSignalScored(status string, score int) {
	signalsScoredTotal.WithLabelValues(status).Inc()
	signalScore.Observe(float64(score))
}

// RecordPrepared counts one orchestrator outcome
func RecordPrepared(skipped bool) {
	outcome := "prepared"
	if skipped {
		outcome = "skipped"
	}
	preparedTradesTotal.WithLabelValues(outcome).Inc()
}

// RecordExecutedTrade counts a recorded trade
func RecordExecutedTrade(status string) {
	executedTradesTotal.WithLabelValues(status).Inc()
}

// ObserveUpstream records the latency of one provider call
func ObserveUpstream(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}

// RecordMonitorTick counts a monitor tick
func RecordMonitorTick() {
	monitorTicksTotal.Inc()
}

// RecordTakeProfit counts an order reaching status
func RecordTakeProfit(status string) {
	takeProfitTotal.WithLabelValues(status).Inc()
}
