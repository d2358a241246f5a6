// Package metrics exposes Prometheus metrics for the ladder trader.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksProcessed 已处理 tick 总数。
	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_ticks_processed_total",
		Help: "Total market ticks processed",
	})

	// TicksDropped 丢弃的坏包数量。
	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_ticks_dropped_total",
		Help: "Malformed or unmapped ticks dropped",
	})

	// OrdersPlaced 按方向与结果统计下单。
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_orders_placed_total",
		Help: "Orders placed, by side and outcome",
	}, []string{"side", "outcome"})

	// FeedReconnects 行情流重连次数。
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_feed_reconnects_total",
		Help: "Market feed reconnection attempts",
	})

	// APIErrors 券商接口错误数。
	APIErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_api_errors_total",
		Help: "Broker API request errors",
	})

	// ActivePositions 当前活跃阶梯数。
	ActivePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ladder_active_positions",
		Help: "Ladders currently holding a position",
	})

	// GlobalPnL 全局实时盈亏。
	GlobalPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ladder_global_pnl",
		Help: "Realized plus unrealized PnL across all ladders",
	})

	// TickLatency tick 处理耗时（秒）。
	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ladder_tick_latency_seconds",
		Help:    "Per-tick processing latency",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	// OrderLatency 下单往返耗时（秒）。
	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ladder_order_latency_seconds",
		Help:    "Order placement round-trip latency",
		Buckets: prometheus.ExponentialBuckets(1e-3, 2, 12),
	})
)

// StartMetricsServer 启动 Prometheus 指标服务器。
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
