package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	TxSubmittedTotal      *prometheus.CounterVec
	TxExecuteDuration     *prometheus.HistogramVec
	SessionConnectTotal   *prometheus.CounterVec
	ProviderEventsTotal   *prometheus.CounterVec
	BalanceFetchDuration  prometheus.Histogram
	PriceIndexRefreshTime *prometheus.GaugeVec
	BondingProgress       *prometheus.GaugeVec
}

// Global Metrics Instance
var Business *BusinessMetrics

var businessOnce sync.Once

// InitBusinessMetrics 初始化业务指标, 重复调用只注册一次
func InitBusinessMetrics() {
	businessOnce.Do(func() {
		Business = &BusinessMetrics{
			TxSubmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ziggly_tx_total",
				Help: "Transaction executions by kind and outcome",
			}, []string{"kind", "outcome"}),
			TxExecuteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "ziggly_tx_execute_duration_seconds",
				Help:    "Duration of transaction executions including wallet approval",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			}, []string{"kind"}),
			SessionConnectTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ziggly_session_connect_total",
				Help: "Wallet connect attempts by outcome",
			}, []string{"outcome"}),
			ProviderEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ziggly_provider_events_total",
				Help: "Wallet provider events received",
			}, []string{"event"}),
			BalanceFetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ziggly_balance_fetch_duration_seconds",
				Help:    "Duration of balance snapshot reads",
				Buckets: prometheus.DefBuckets,
			}),
			PriceIndexRefreshTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ziggly_price_index_refreshed_timestamp",
				Help: "Unix time of the last price index refresh",
			}, []string{"token"}),
			BondingProgress: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ziggly_bonding_progress_percent",
				Help: "Bonding curve progress per token",
			}, []string{"token"}),
		}
	})
}

// 以下方法在 Business 未初始化时 (单测, CLI) 直接忽略

func (m *BusinessMetrics) ObserveTx(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.TxSubmittedTotal.WithLabelValues(kind, outcome).Inc()
	m.TxExecuteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *BusinessMetrics) ObserveConnect(outcome string) {
	if m == nil {
		return
	}
	m.SessionConnectTotal.WithLabelValues(outcome).Inc()
}

func (m *BusinessMetrics) ObserveProviderEvent(event string) {
	if m == nil {
		return
	}
	m.ProviderEventsTotal.WithLabelValues(event).Inc()
}

func (m *BusinessMetrics) ObserveBalanceFetch(start time.Time) {
	if m == nil {
		return
	}
	m.BalanceFetchDuration.Observe(time.Since(start).Seconds())
}

func (m *BusinessMetrics) ObservePriceIndex(token string, progress float64) {
	if m == nil {
		return
	}
	m.PriceIndexRefreshTime.WithLabelValues(token).SetToCurrentTime()
	m.BondingProgress.WithLabelValues(token).Set(progress)
}
