package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 行情与周期指标
	bookUpdates   prometheus.Counter
	cycleDuration prometheus.Histogram
	bidPrice      prometheus.Gauge
	askPrice      prometheus.Gauge

	// 订单动作指标，按动作与结果分类
	actions *prometheus.CounterVec
	flushes prometheus.Counter

	// 成交与仓位指标
	fills        prometheus.Counter
	filledVolume prometheus.Counter
	position     prometheus.Gauge
	realizedPnL  prometheus.Gauge
	activeQuotes prometheus.Gauge

	// 风控指标
	riskMode     prometheus.Gauge
	liquidityCut prometheus.Counter

	// 连接指标
	wsConnections prometheus.Counter
	wsDisconnects prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "quoter",
		Subsystem: "engine",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		bookUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "book_updates_total",
			Help:      "订单簿更新回调总数",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "单次报价周期耗时（秒）",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		bidPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "bid_price",
			Help:      "当前买一价",
		}),
		askPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ask_price",
			Help:      "当前卖一价",
		}),

		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "order_actions_total",
				Help:      "订单动作总数，按动作与结果分类",
			},
			[]string{"action", "result"},
		),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "order_flushes_total",
			Help:      "批量下发次数",
		}),

		fills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "成交笔数总数",
		}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "累计成交量",
		}),
		position: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position",
			Help:      "当前净仓位",
		}),
		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "realized_pnl",
			Help:      "已实现盈亏",
		}),
		activeQuotes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_quotes",
			Help:      "当前挂出的报价数量",
		}),

		riskMode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "risk_mode",
			Help:      "风控状态(0=正常,1=安全模式)",
		}),
		liquidityCut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "liquidity_cancels_total",
			Help:      "流动性蒸发触发的撤单次数",
		}),

		wsConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_connections_total",
			Help:      "WebSocket连接次数",
		}),
		wsDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_disconnects_total",
			Help:      "WebSocket断开次数",
		}),
	}

	return m
}

func (m *Monitor) RecordBookUpdate() {
	m.bookUpdates.Inc()
}

func (m *Monitor) RecordCycleDuration(seconds float64) {
	m.cycleDuration.Observe(seconds)
}

func (m *Monitor) UpdateBidAsk(bid, ask float64) {
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
}

// RecordAction 按动作（new/modify/cancel）与结果（done/skipped/failed）计数
func (m *Monitor) RecordAction(action, result string) {
	m.actions.WithLabelValues(action, result).Inc()
}

// RecordActions 批量记录同类动作
func (m *Monitor) RecordActions(action, result string, n int) {
	if n > 0 {
		m.actions.WithLabelValues(action, result).Add(float64(n))
	}
}

func (m *Monitor) RecordFlush() {
	m.flushes.Inc()
}

func (m *Monitor) RecordFill(volume float64) {
	m.fills.Inc()
	m.filledVolume.Add(volume)
}

func (m *Monitor) UpdatePosition(value float64) {
	m.position.Set(value)
}

func (m *Monitor) UpdateRealizedPnL(value float64) {
	m.realizedPnL.Set(value)
}

func (m *Monitor) UpdateActiveQuotes(n int) {
	m.activeQuotes.Set(float64(n))
}

func (m *Monitor) UpdateRiskMode(mode int) {
	m.riskMode.Set(float64(mode))
}

func (m *Monitor) RecordLiquidityCancel() {
	m.liquidityCut.Inc()
}

func (m *Monitor) RecordWSConnection() {
	m.wsConnections.Inc()
}

func (m *Monitor) RecordWSDisconnect() {
	m.wsDisconnects.Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Serve 启动指标服务器
func Serve(m *Monitor, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
