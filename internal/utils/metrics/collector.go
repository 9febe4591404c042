// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricType представляет тип метрики
type MetricType string

const (
	TradeCounterType  MetricType = "trade_counter"
	TradeVolumeType   MetricType = "trade_volume"
	FeeCounterType    MetricType = "fees_collected"
	RejectionType     MetricType = "trade_rejections"
	CurvePriceType    MetricType = "curve_price"
	CurveProgressType MetricType = "curve_progress"
	TaskDurationType  MetricType = "task_duration"
	TaskCounterType   MetricType = "task_counter"
)

const metricsNamespace = "pumpcurve"

// Collector управляет набором метрик одного реестра
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry

	trades     *prometheus.CounterVec
	volume     *prometheus.CounterVec
	fees       *prometheus.CounterVec
	rejections *prometheus.CounterVec
	price      *prometheus.GaugeVec
	progress   *prometheus.GaugeVec
	taskTime   *prometheus.HistogramVec
	tasks      *prometheus.CounterVec
}

// NewCollector создает коллектор с собственным реестром. withRuntime
// добавляет go_* и process_* метрики.
func NewCollector(withRuntime bool) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initializeMetrics()
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

func (c *Collector) initializeMetrics() {
	c.trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trades_total",
			Help:      "Total number of settled trades",
		},
		[]string{"mint", "direction"},
	)
	c.volume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trade_volume_raw_total",
			Help:      "Sum of trade input amounts in raw units",
		},
		[]string{"mint", "direction"},
	)
	c.fees = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fees_collected_raw_total",
			Help:      "Fees credited to the fee collector in raw currency units",
		},
		[]string{"mint"},
	)
	c.rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trade_rejections_total",
			Help:      "Trades rejected by the ledger, by reason",
		},
		[]string{"direction", "reason"},
	)
	c.price = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "curve_price",
			Help:      "Unit price the last trade executed at",
		},
		[]string{"mint"},
	)
	c.progress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "curve_progress_bps",
			Help:      "Units sold as basis points of the sale supply",
		},
		[]string{"mint"},
	)
	c.taskTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "task_duration_seconds",
			Help:      "Simulator task duration in seconds, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)
	c.tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_total",
			Help:      "Simulator tasks by outcome",
		},
		[]string{"status", "operation"},
	)

	metricsMap := map[MetricType]prometheus.Collector{
		TradeCounterType:  c.trades,
		TradeVolumeType:   c.volume,
		FeeCounterType:    c.fees,
		RejectionType:     c.rejections,
		CurvePriceType:    c.price,
		CurveProgressType: c.progress,
		TaskDurationType:  c.taskTime,
		TaskCounterType:   c.tasks,
	}
	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry returns the registry every metric of c is registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}
