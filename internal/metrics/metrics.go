// Package metrics exposes Prometheus instrumentation for the simulation
// engine and the HTTP API. Collectors are registered once at package load
// via promauto; the /metrics endpoint is served by promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_tick_total",
			Help: "Total number of simulation ticks processed",
		},
		[]string{"pair"},
	)

	currentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_mark_price",
			Help: "Current simulated mark price",
		},
		[]string{"pair"},
	)

	openPositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_open_positions",
			Help: "Number of currently open positions",
		},
		[]string{"pair"},
	)

	openOrders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_open_orders",
			Help: "Number of resting limit orders",
		},
		[]string{"pair"},
	)

	tradeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_trade_events_total",
			Help: "Journal entries appended, by action and close reason",
		},
		[]string{"pair", "action", "reason"},
	)

	// A gauge rather than a counter: realized PnL can go negative.
	realizedPnL = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_realized_pnl_total",
			Help: "Cumulative realized PnL from closed positions",
		},
		[]string{"pair"},
	)
)

// RecordTick updates per-tick gauges after the engine finishes a tick.
func RecordTick(pair string, price float64, positions, orders int) {
	tickTotal.WithLabelValues(pair).Inc()
	currentPrice.WithLabelValues(pair).Set(price)
	openPositions.WithLabelValues(pair).Set(float64(positions))
	openOrders.WithLabelValues(pair).Set(float64(orders))
}

// RecordTradeEvent counts a journal append.
func RecordTradeEvent(pair, action, reason string) {
	if reason == "" {
		reason = "none"
	}
	tradeEvents.WithLabelValues(pair, action, reason).Inc()
}

// RecordRealizedPnL accumulates realized PnL from a position close.
func RecordRealizedPnL(pair string, pnl float64) {
	realizedPnL.WithLabelValues(pair).Add(pnl)
}
