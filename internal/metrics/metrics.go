// Package metrics 电池健康服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标集合，每个实例使用独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	reports         *prometheus.CounterVec
	computeErrors   prometheus.Counter
	coalesced       prometheus.Counter
	computeDuration prometheus.Histogram
	published       *prometheus.CounterVec
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batgauge_report_cache_hits_total",
			Help: "Battery health report cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batgauge_report_cache_misses_total",
			Help: "Battery health report cache misses.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batgauge_reports_computed_total",
			Help: "Battery health reports computed, by health label.",
		}, []string{"health"}),
		computeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batgauge_report_errors_total",
			Help: "Battery health computations that failed.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batgauge_report_coalesced_total",
			Help: "Requests served by an in-flight computation for the same car.",
		}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batgauge_report_compute_seconds",
			Help:    "Time spent loading records and computing a battery health report.",
			Buckets: prometheus.DefBuckets,
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batgauge_events_published_total",
			Help: "Battery health events published to the message bus, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.reports,
		m.computeErrors,
		m.coalesced,
		m.computeDuration,
		m.published,
		collectors.NewGoCollector(),
	)
	return m
}

// CacheHit 实现 cache.Observer
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss 实现 cache.Observer
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// ObserveReport 记录一次成功计算
func (m *Metrics) ObserveReport(health string, d time.Duration) {
	m.reports.WithLabelValues(health).Inc()
	m.computeDuration.Observe(d.Seconds())
}

// ObserveError 记录一次失败计算
func (m *Metrics) ObserveError() { m.computeErrors.Inc() }

// ObserveCoalesced 请求复用了进行中的计算
func (m *Metrics) ObserveCoalesced() { m.coalesced.Inc() }

// ObservePublish 记录事件发布结果
func (m *Metrics) ObservePublish(err error) {
	if err != nil {
		m.published.WithLabelValues("error").Inc()
		return
	}
	m.published.WithLabelValues("ok").Inc()
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
